package mappers

import (
	"fmt"

	"github.com/jorgesolerrr/umet-reports/internal/domain"
)

// Module types with dedicated handling before the table lookup.
const (
	modURL      = "url"
	modResource = "resource"
	modFolder   = "folder"
	modForum    = "forum"
)

// moduleCounters maps a Moodle engine type (modname) to the counter it feeds.
// url/resource/folder are handled separately and are not listed.
var moduleCounters = map[string]domain.Counter{
	"label":    domain.Labels,
	"page":     domain.Pages,
	"book":     domain.Books,
	"assign":   domain.Assignments,
	"quiz":     domain.Quizzes,
	"glossary": domain.Glossaries,
	"workshop": domain.Workshops,
	"lesson":   domain.Lessons,
	"forum":    domain.Forums,
	"wiki":     domain.Wikis,
	"chat":     domain.Chats,
	"mindmap":  domain.MindMaps,
}

// UnknownModuleTypeError is returned for a module whose type has no counter.
type UnknownModuleTypeError struct {
	ModuleID int
	Type     string
}

func (e *UnknownModuleTypeError) Error() string {
	return fmt.Sprintf("unknown module type %q (module %d)", e.Type, e.ModuleID)
}

// CounterFor resolves a module type to its counter.
func CounterFor(moduleID int, modName string) (domain.Counter, error) {
	c, ok := moduleCounters[modName]
	if !ok {
		return 0, &UnknownModuleTypeError{ModuleID: moduleID, Type: modName}
	}
	return c, nil
}

func isActivityType(modName string) bool {
	c, ok := moduleCounters[modName]
	return ok && c.IsActivity()
}
