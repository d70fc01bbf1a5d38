package moodle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jorgesolerrr/umet-reports/internal/httpx"
)

// Web service functions consumed by the reports.
const (
	fnSearchCourses  = "core_course_search_courses"
	fnCoursesByField = "core_course_get_courses_by_field"
	fnEnrolledUsers  = "core_enrol_get_enrolled_users"
	fnCourseContents = "core_course_get_contents"
	fnCategories     = "core_course_get_categories"
	fnGradeItems     = "gradereport_user_get_grade_items"
)

// Client issues read calls against a Moodle REST endpoint
// (".../webservice/rest/server.php"). It holds no mutable state and does not
// retry unless Retry is changed by the caller.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Retry   httpx.RetryConfig
	PerPage int // page size for course search
}

func New(baseURL, token string) *Client {
	tr := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP: &http.Client{
			Timeout:   2 * time.Minute, // por-request
			Transport: tr,
		},
		Retry:   httpx.NoRetry(),
		PerPage: 100,
	}
}

// call runs one web service function and decodes the payload into out.
func (c *Client) call(ctx context.Context, function string, params url.Values, out any) error {
	if c.Token == "" {
		return errors.New("moodle: missing token")
	}
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("wstoken", c.Token)
	q.Set("moodlewsrestformat", "json")
	q.Set("wsfunction", function)

	body, err := httpx.Get(ctx, c.HTTP, c.BaseURL, q, c.Retry)
	if err != nil {
		rerr := &RemoteServiceError{Function: function, Err: err}
		var herr *httpx.HTTPError
		if errors.As(err, &herr) {
			rerr.StatusCode = herr.StatusCode
		}
		return rerr
	}

	if err := checkException(function, body); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("moodle: %s: json parse error: %w body=%s", function, err, httpx.Snippet(body, 300))
	}
	return nil
}

// checkException detects the error envelope Moodle sends with HTTP 200.
func checkException(function string, body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var env exceptionEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil
	}
	if env.Exception == nil {
		return nil
	}
	return &RemoteServiceError{
		Function:  function,
		Exception: *env.Exception,
		ErrorCode: env.ErrorCode,
		Message:   env.Message,
	}
}

/* -------- API -------- */

// SearchCourses returns every course matching criteria, walking all result pages.
func (c *Client) SearchCourses(ctx context.Context, criteria string) ([]Course, error) {
	perPage := c.PerPage
	if perPage <= 0 {
		perPage = 100
	}

	var all []Course
	for page := 0; ; page++ {
		var resp searchCoursesResponse
		err := c.call(ctx, fnSearchCourses, url.Values{
			"criterianame":  {"search"},
			"criteriavalue": {criteria},
			"page":          {strconv.Itoa(page)},
			"perpage":       {strconv.Itoa(perPage)},
		}, &resp)
		if err != nil {
			return all, err
		}
		all = append(all, resp.Courses...)

		if len(resp.Courses) == 0 || len(resp.Courses) < perPage || len(all) >= resp.Total {
			break
		}
	}
	return all, nil
}

// CourseByField looks up a single course. It returns nil, nil when nothing matches.
func (c *Client) CourseByField(ctx context.Context, field, value string) (*Course, error) {
	var resp coursesByFieldResponse
	err := c.call(ctx, fnCoursesByField, url.Values{
		"field": {field},
		"value": {value},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Courses) == 0 {
		return nil, nil
	}
	course := resp.Courses[0]
	return &course, nil
}

// EnrolledUsers lists course participants split by their first role.
func (c *Client) EnrolledUsers(ctx context.Context, courseID int) (Enrolled, error) {
	var users []User
	err := c.call(ctx, fnEnrolledUsers, url.Values{
		"courseid": {strconv.Itoa(courseID)},
	}, &users)
	if err != nil {
		return Enrolled{}, err
	}
	return SplitEnrolled(users), nil
}

// SplitEnrolled classifies users by the first role they hold; users with other
// roles (or none) are dropped.
func SplitEnrolled(users []User) Enrolled {
	var out Enrolled
	for _, u := range users {
		if len(u.Roles) == 0 {
			continue
		}
		switch u.Roles[0].RoleID {
		case StudentRoleID:
			out.Students = append(out.Students, u)
		case TeacherRoleID:
			out.Teachers = append(out.Teachers, u)
		}
	}
	return out
}

// CourseContents returns the sections of a course with their modules.
func (c *Client) CourseContents(ctx context.Context, courseID int) ([]Section, error) {
	var sections []Section
	err := c.call(ctx, fnCourseContents, url.Values{
		"courseid": {strconv.Itoa(courseID)},
	}, &sections)
	if err != nil {
		return nil, err
	}
	return sections, nil
}

// CategoryInfo returns one category by id.
func (c *Client) CategoryInfo(ctx context.Context, categoryID int) (Category, error) {
	var cats []Category
	err := c.call(ctx, fnCategories, url.Values{
		"criteria[0][key]":   {"id"},
		"criteria[0][value]": {strconv.Itoa(categoryID)},
		"addsubcategories":   {"0"},
	}, &cats)
	if err != nil {
		return Category{}, err
	}
	if len(cats) == 0 {
		return Category{}, fmt.Errorf("moodle: category %d not found", categoryID)
	}
	return cats[0], nil
}

// GradeItems returns the grade items of every user in a course.
func (c *Client) GradeItems(ctx context.Context, courseID int) ([]UserGrades, error) {
	var resp gradeItemsResponse
	err := c.call(ctx, fnGradeItems, url.Values{
		"courseid": {strconv.Itoa(courseID)},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.UserGrades, nil
}
