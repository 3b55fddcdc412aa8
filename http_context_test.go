package accounts_test

import (
	"context"
	"encoding/json"
	"errors"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-router"
)

// testContext is a map backed router.Context that records what the
// handler wrote.
type testContext struct {
	router.ContextStore

	ctx     context.Context
	params  map[string]string
	headers map[string]string
	cookies map[string]string
	locals  map[any]any
	body    []byte

	status     int
	response   any
	setCookies []*router.Cookie
}

var _ router.Context = (*testContext)(nil)

var errUnprocessable = errors.New("Unprocessable Entity")

func newTestContext() *testContext {
	return &testContext{
		ContextStore: router.NewContextStore(),
		ctx:          context.Background(),
		params:       map[string]string{},
		headers:      map[string]string{},
		cookies:      map[string]string{},
		locals:       map[any]any{},
	}
}

func (c *testContext) withJSON(v any) *testContext {
	c.body, _ = json.Marshal(v)
	c.headers["Content-Type"] = "application/json"
	return c
}

func (c *testContext) bearer(token string) *testContext {
	c.headers["Authorization"] = "Bearer " + token
	return c
}

func (c *testContext) principal(p accounts.Principal) *testContext {
	c.locals[accounts.PrincipalLocalsKey] = p
	return c
}

func (c *testContext) view() router.ViewContext {
	body, _ := c.response.(router.ViewContext)
	return body
}

func (c *testContext) Method() string { return "POST" }
func (c *testContext) Path() string   { return "/" }

func (c *testContext) Param(name string, def ...string) string {
	if v, ok := c.params[name]; ok {
		return v
	}
	if len(def) > 0 {
		return def[0]
	}
	return ""
}

func (c *testContext) ParamsInt(string, int) int           { return 0 }
func (c *testContext) Query(_ string, def string) string   { return def }
func (c *testContext) QueryInt(_ string, def int) int      { return def }
func (c *testContext) Queries() map[string]string          { return map[string]string{} }
func (c *testContext) Body() []byte                        { return c.body }
func (c *testContext) Render(string, any, ...string) error { return nil }

func (c *testContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		c.locals[key] = value[0]
		return value[0]
	}
	return c.locals[key]
}

func (c *testContext) Cookie(cookie *router.Cookie) {
	c.setCookies = append(c.setCookies, cookie)
}

func (c *testContext) Cookies(key string, def ...string) string {
	if v, ok := c.cookies[key]; ok {
		return v
	}
	if len(def) > 0 {
		return def[0]
	}
	return ""
}

func (c *testContext) CookieParser(any) error                                   { return nil }
func (c *testContext) Redirect(string, ...int) error                            { return nil }
func (c *testContext) RedirectToRoute(string, router.ViewContext, ...int) error { return nil }
func (c *testContext) RedirectBack(string, ...int) error                        { return nil }
func (c *testContext) Header(key string) string                                 { return c.headers[key] }
func (c *testContext) Referer() string                                          { return "" }
func (c *testContext) OriginalURL() string                                      { return "/" }

func (c *testContext) Status(code int) router.Context {
	c.status = code
	return c
}

func (c *testContext) Send([]byte) error       { return nil }
func (c *testContext) SendString(string) error { return nil }

func (c *testContext) JSON(code int, v any) error {
	c.status = code
	c.response = v
	return nil
}

func (c *testContext) NoContent(code int) error {
	c.status = code
	return nil
}

func (c *testContext) SetHeader(string, string) router.Context { return c }

// Bind fails on empty bodies like the fiber body parser does when no
// content type was sent.
func (c *testContext) Bind(v any) error {
	if len(c.body) == 0 {
		return errUnprocessable
	}
	return json.Unmarshal(c.body, v)
}

func (c *testContext) Context() context.Context       { return c.ctx }
func (c *testContext) SetContext(ctx context.Context) { c.ctx = ctx }
func (c *testContext) Next() error                    { return nil }
