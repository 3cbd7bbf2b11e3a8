package logstore

import (
	"fmt"
	"regexp"
	"strings"
)

// FilterConfig restricts which logs and consumer groups are considered when all of them are requested.
type FilterConfig struct {
	AllowedLogs   []string `koanf:"allowedLogs"`
	IgnoredLogs   []string `koanf:"ignoredLogs"`
	AllowedGroups []string `koanf:"allowedGroups"`
	IgnoredGroups []string `koanf:"ignoredGroups"`
}

func (c *FilterConfig) SetDefaults() {
	c.AllowedLogs = []string{"/.*/"}
	c.IgnoredLogs = []string{"/^_.*/"}
	c.AllowedGroups = []string{"/.*/"}
	c.IgnoredGroups = []string{}
}

func (c *FilterConfig) Validate() error {
	for name, exprs := range map[string][]string{
		"allowedLogs":   c.AllowedLogs,
		"ignoredLogs":   c.IgnoredLogs,
		"allowedGroups": c.AllowedGroups,
		"ignoredGroups": c.IgnoredGroups,
	} {
		if _, err := compileRegexes(exprs); err != nil {
			return fmt.Errorf("failed to compile %v regex: %w", name, err)
		}
	}
	return nil
}

// Filter decides which logs and groups are allowed. An expression wrapped in slashes is a regex, anything else
// matches literally.
type Filter struct {
	allowedLogs   []*regexp.Regexp
	ignoredLogs   []*regexp.Regexp
	allowedGroups []*regexp.Regexp
	ignoredGroups []*regexp.Regexp
}

func NewFilter(cfg FilterConfig) (*Filter, error) {
	var err error
	f := &Filter{}
	if f.allowedLogs, err = compileRegexes(cfg.AllowedLogs); err != nil {
		return nil, err
	}
	if f.ignoredLogs, err = compileRegexes(cfg.IgnoredLogs); err != nil {
		return nil, err
	}
	if f.allowedGroups, err = compileRegexes(cfg.AllowedGroups); err != nil {
		return nil, err
	}
	if f.ignoredGroups, err = compileRegexes(cfg.IgnoredGroups); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Filter) IsLogAllowed(name string) bool {
	return isAllowed(name, f.allowedLogs, f.ignoredLogs)
}

func (f *Filter) IsGroupAllowed(group string) bool {
	return isAllowed(group, f.allowedGroups, f.ignoredGroups)
}

func isAllowed(name string, allowed, ignored []*regexp.Regexp) bool {
	isAllowed := false
	for _, regex := range allowed {
		if regex.MatchString(name) {
			isAllowed = true
			break
		}
	}

	for _, regex := range ignored {
		if regex.MatchString(name) {
			isAllowed = false
			break
		}
	}
	return isAllowed
}

func compileRegex(expr string) (*regexp.Regexp, error) {
	if len(expr) > 1 && strings.HasPrefix(expr, "/") && strings.HasSuffix(expr, "/") {
		return regexp.Compile(expr[1 : len(expr)-1])
	}

	// No regex input (marked by the slashes around it), match the literal
	return regexp.Compile("^" + regexp.QuoteMeta(expr) + "$")
}

func compileRegexes(expr []string) ([]*regexp.Regexp, error) {
	compiledExpressions := make([]*regexp.Regexp, len(expr))
	for i, exprStr := range expr {
		expr, err := compileRegex(exprStr)
		if err != nil {
			return nil, fmt.Errorf("failed to compile expression string '%v': %w", exprStr, err)
		}
		compiledExpressions[i] = expr
	}

	return compiledExpressions, nil
}
