package theme

import (
	"context"
	"fmt"
)

// Default document classes used by the host for its two themes.
const (
	DefaultLightClass = "theme-light"
	DefaultDarkClass  = "theme-dark"
)

// Evaluator runs a JS function in the host page. *devtools.Host
// implements it.
type Evaluator interface {
	EvalString(ctx context.Context, js string, args ...interface{}) (string, error)
}

const (
	getThemeJS = `(light, dark) => {
	const c = document.documentElement.classList;
	if (c.contains(dark)) return "dark";
	if (c.contains(light)) return "light";
	return "";
}`
	setThemeJS = `(from, to) => {
	const c = document.documentElement.classList;
	if (!c.replace(from, to)) c.add(to);
	return to;
}`
)

// DevTools switches themes by swapping the theme class on the host page's
// document element.
type DevTools struct {
	page       Evaluator
	lightClass string
	darkClass  string
}

// NewDevTools returns a DevTools service. Empty class names fall back to the
// defaults.
func NewDevTools(page Evaluator, lightClass, darkClass string) *DevTools {
	if lightClass == "" {
		lightClass = DefaultLightClass
	}
	if darkClass == "" {
		darkClass = DefaultDarkClass
	}
	return &DevTools{page: page, lightClass: lightClass, darkClass: darkClass}
}

func (d *DevTools) Get(ctx context.Context) (Theme, error) {
	s, err := d.page.EvalString(ctx, getThemeJS, d.lightClass, d.darkClass)
	if err != nil {
		return "", fmt.Errorf("get theme: %w", err)
	}
	if s == "" {
		return "", fmt.Errorf("get theme: document has neither %s nor %s", d.lightClass, d.darkClass)
	}
	return Parse(s)
}

func (d *DevTools) Set(ctx context.Context, t Theme) error {
	from, to := d.darkClass, d.lightClass
	if t == Dark {
		from, to = d.lightClass, d.darkClass
	}
	if _, err := d.page.EvalString(ctx, setThemeJS, from, to); err != nil {
		return fmt.Errorf("set theme %s: %w", t, err)
	}
	return nil
}
