package updates

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// Render writes a templ component as a 200 text/html response.
func Render(c echo.Context, component templ.Component) error {
	return RenderStatus(c, http.StatusOK, component)
}

// RenderStatus writes a templ component with the given status code.
func RenderStatus(c echo.Context, status int, component templ.Component) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	res.WriteHeader(status)
	return component.Render(c.Request().Context(), res.Writer)
}
