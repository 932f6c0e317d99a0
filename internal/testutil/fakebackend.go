package testutil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"taskboard/internal/service"
)

// Roles issued by the fake backend.
const (
	RoleAdmin = "ROLE_ADMIN"
	RoleUser  = "ROLE_USER"
)

// FakeSecret signs the tokens the fake backend issues.
var FakeSecret = []byte("taskboard-test-secret")

// RecordedRequest is one request seen by FakeBackend.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	RequestID     string
}

type fakeAccount struct {
	user service.User
	hash []byte
}

// FakeBackend is an HTTP implementation of the task REST API for tests.
type FakeBackend struct {
	URL string

	srv *httptest.Server

	mu       sync.Mutex
	accounts []fakeAccount
	tasks    []service.Task
	nextTask int64
	nextUser int64
	requests []RecordedRequest
	failures []int
}

// NewFakeBackend starts a backend that is shut down when the test ends.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()

	b := &FakeBackend{nextTask: 1, nextUser: 1}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	b.routes(e)

	b.srv = httptest.NewServer(e)
	b.URL = b.srv.URL
	t.Cleanup(b.srv.Close)
	return b
}

func (b *FakeBackend) routes(e *echo.Echo) {
	e.Use(b.record)

	e.POST("/auth/login", b.login)
	e.POST("/auth/register", b.register)

	api := e.Group("/api", b.authenticate)
	api.GET("/tasks", b.listTasks)
	api.GET("/tasks/:id", b.getTask)

	admin := requireRole(RoleAdmin)
	api.POST("/tasks", b.createTask, admin)
	api.PUT("/tasks/:id", b.updateTask, admin)
	api.DELETE("/tasks/:id", b.deleteTask, admin)
	api.GET("/users", b.listUsers, admin)
}

// AddUser creates an account and returns its user record.
func (b *FakeBackend) AddUser(name, email, password, role string) service.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	u := service.User{ID: b.nextUser, Name: name, Email: email, Role: role}
	b.nextUser++
	b.accounts = append(b.accounts, fakeAccount{user: u, hash: hash})
	return u
}

// AddTask stores a task, assigning an id and creation time when unset.
func (b *FakeBackend) AddTask(task service.Task) service.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addTaskLocked(task)
}

func (b *FakeBackend) addTaskLocked(task service.Task) service.Task {
	if task.ID == 0 {
		task.ID = b.nextTask
	}
	if task.ID >= b.nextTask {
		b.nextTask = task.ID + 1
	}
	if task.Status == "" {
		task.Status = service.StatusPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = service.Timestamp{Time: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	}
	if task.AssignedUserName == "" {
		for _, a := range b.accounts {
			if a.user.ID == task.AssignedUserID {
				task.AssignedUserName = a.user.Name
			}
		}
	}
	b.tasks = append(b.tasks, task)
	return task
}

// Tasks returns a snapshot of the stored tasks.
func (b *FakeBackend) Tasks() []service.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]service.Task(nil), b.tasks...)
}

// Requests returns every request seen so far.
func (b *FakeBackend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedRequest(nil), b.requests...)
}

// FailNext makes the next request fail with status.
func (b *FakeBackend) FailNext(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, status)
}

// IssueToken signs a token for the given identity, expiring after ttl.
func IssueToken(email, name, role string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub":  email,
		"name": name,
		"role": role,
		"exp":  time.Now().Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(FakeSecret)
	if err != nil {
		panic(err)
	}
	return signed
}

func (b *FakeBackend) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		r := c.Request()
		b.mu.Lock()
		b.requests = append(b.requests, RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.Query(),
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
		})
		status := 0
		if len(b.failures) > 0 {
			status = b.failures[0]
			b.failures = b.failures[1:]
		}
		b.mu.Unlock()

		if status != 0 {
			return c.JSON(status, echo.Map{"error": http.StatusText(status), "message": "injected failure"})
		}
		return next(c)
	}
}

func (b *FakeBackend) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := strings.CutPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing token"})
		}
		token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
			return FakeSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}
		c.Set("claims", token.Claims)
		return next(c)
	}
}

func requireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get("claims").(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token claims"})
			}
			if got, _ := claims["role"].(string); got != role {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "Access forbidden"})
			}
			return next(c)
		}
	}
}

func (b *FakeBackend) login(c echo.Context) error {
	var creds service.Credentials
	if err := c.Bind(&creds); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	b.mu.Lock()
	var found *fakeAccount
	for _, a := range b.accounts {
		if strings.EqualFold(a.user.Email, creds.Email) {
			found = &a
		}
	}
	b.mu.Unlock()

	if found == nil || bcrypt.CompareHashAndPassword(found.hash, []byte(creds.Password)) != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid email or password"})
	}
	u := found.user
	return c.JSON(http.StatusOK, service.AuthResult{
		Token: IssueToken(u.Email, u.Name, u.Role, time.Hour),
		Role:  u.Role,
		Name:  u.Name,
		Email: u.Email,
	})
}

func (b *FakeBackend) register(c echo.Context) error {
	var reg service.Registration
	if err := c.Bind(&reg); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	b.mu.Lock()
	for _, a := range b.accounts {
		if strings.EqualFold(a.user.Email, reg.Email) {
			b.mu.Unlock()
			return c.JSON(http.StatusConflict, echo.Map{"message": "email already registered"})
		}
	}
	b.mu.Unlock()
	b.AddUser(reg.Name, reg.Email, reg.Password, RoleUser)
	return c.NoContent(http.StatusCreated)
}

func (b *FakeBackend) listTasks(c echo.Context) error {
	title := strings.ToLower(c.QueryParam("title"))
	desc := strings.ToLower(c.QueryParam("description"))
	status := c.QueryParam("status")
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, err := strconv.Atoi(c.QueryParam("size"))
	if err != nil || size <= 0 {
		size = 10
	}

	b.mu.Lock()
	var matched []service.Task
	for _, t := range b.tasks {
		if title != "" && !strings.Contains(strings.ToLower(t.Title), title) {
			continue
		}
		if desc != "" && !strings.Contains(strings.ToLower(t.Description), desc) {
			continue
		}
		if status != "" && string(t.Status) != status {
			continue
		}
		matched = append(matched, t)
	}
	b.mu.Unlock()

	total := (len(matched) + size - 1) / size
	content := []service.Task{}
	if start := page * size; page >= 0 && start < len(matched) {
		end := min(start+size, len(matched))
		content = matched[start:end]
	}
	return c.JSON(http.StatusOK, service.TaskPage{Content: content, TotalPages: total})
}

func (b *FakeBackend) getTask(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexLocked(id); i >= 0 {
		return c.JSON(http.StatusOK, b.tasks[i])
	}
	return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
}

func (b *FakeBackend) createTask(c echo.Context) error {
	var in service.TaskInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := checkInput(in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": err.Error()})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	task := b.addTaskLocked(service.Task{
		Title:          in.Title,
		Description:    in.Description,
		Status:         in.Status,
		AssignedUserID: in.AssignedUserID,
	})
	return c.JSON(http.StatusCreated, task)
}

func (b *FakeBackend) updateTask(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var in service.TaskInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := checkInput(in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": err.Error()})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(id)
	if i < 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
	}
	t := &b.tasks[i]
	t.Title = in.Title
	t.Description = in.Description
	if in.Status != "" {
		t.Status = in.Status
	}
	if in.AssignedUserID != t.AssignedUserID {
		t.AssignedUserID = in.AssignedUserID
		t.AssignedUserName = ""
		for _, a := range b.accounts {
			if a.user.ID == in.AssignedUserID {
				t.AssignedUserName = a.user.Name
			}
		}
	}
	return c.JSON(http.StatusOK, *t)
}

func (b *FakeBackend) deleteTask(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(id)
	if i < 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
	}
	b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
	return c.NoContent(http.StatusNoContent)
}

func (b *FakeBackend) listUsers(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	users := make([]service.User, 0, len(b.accounts))
	for _, a := range b.accounts {
		users = append(users, a.user)
	}
	return c.JSON(http.StatusOK, users)
}

func (b *FakeBackend) indexLocked(id int64) int {
	for i, t := range b.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func checkInput(in service.TaskInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return errors.New("title is required")
	}
	if in.AssignedUserID == 0 {
		return errors.New("assignedUserId is required")
	}
	return nil
}
