package cli

import (
	"fmt"
	"strings"
)

// getStatus renders "(user mode)" for the prompt.
func (a *App) getStatus() string {
	s := ""
	if p := a.session.Profile(); p != nil {
		s = p.Username + " "
	} else if u := a.session.User(); u != nil {
		s = u.Email + " "
	}
	if m := a.mode(); m != "" {
		s += string(m)
	}
	if s = strings.TrimSpace(s); s != "" {
		s = fmt.Sprintf(" (%s)", s)
	}
	return s
}
