package providers

import (
	"context"

	"github.com/jorgesolerrr/umet-reports/internal/httpx"
	"github.com/jorgesolerrr/umet-reports/internal/providers/moodle"
)

// CourseAPI is the read surface of an LMS used by the extraction workflows.
// *moodle.Client implements it; tests inject stubs.
type CourseAPI interface {
	SearchCourses(ctx context.Context, criteria string) ([]moodle.Course, error)
	CourseByField(ctx context.Context, field, value string) (*moodle.Course, error)
	EnrolledUsers(ctx context.Context, courseID int) (moodle.Enrolled, error)
	CourseContents(ctx context.Context, courseID int) ([]moodle.Section, error)
	CategoryInfo(ctx context.Context, categoryID int) (moodle.Category, error)
	GradeItems(ctx context.Context, courseID int) ([]moodle.UserGrades, error)
}

// Factory builds a fresh API client. Workers call it once per chunk.
type Factory func() CourseAPI

// MoodleFactory returns a Factory for one Moodle instance.
func MoodleFactory(baseURL, token string, configure func(*moodle.Client)) Factory {
	return func() CourseAPI {
		c := moodle.New(baseURL, token)
		if configure != nil {
			configure(c)
		}
		return c
	}
}

// WithRetry enables transport retries on the client when attempts > 1.
func WithRetry(attempts int) func(*moodle.Client) {
	return func(c *moodle.Client) {
		if attempts <= 1 {
			return
		}
		rc := httpx.DefaultRetryConfig()
		rc.MaxAttempts = attempts
		c.Retry = rc
	}
}
