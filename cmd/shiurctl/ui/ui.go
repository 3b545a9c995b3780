// Package ui holds the interactive forms and styled output of shiurctl.
package ui

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(12)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

// AdminAccount is what create-admin needs to create an account.
type AdminAccount struct {
	Username string
	Email    string
	Password string
}

// Complete reports whether every field is set.
func (a *AdminAccount) Complete() bool {
	return a.Username != "" && a.Email != "" && a.Password != ""
}

// RunAdminForm prompts for the fields of a that are still empty.
func RunAdminForm(a *AdminAccount) error {
	var fields []huh.Field
	if a.Username == "" {
		fields = append(fields, huh.NewInput().
			Title("Username").
			Value(&a.Username).
			Validate(required("username")))
	}
	if a.Email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Placeholder("admin@example.com").
			Value(&a.Email).
			Validate(func(s string) error {
				if _, err := mail.ParseAddress(strings.TrimSpace(s)); err != nil {
					return errors.New("a valid email is required")
				}
				return nil
			}))
	}
	if a.Password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			Description("At least 8 characters").
			EchoMode(huh.EchoModePassword).
			Value(&a.Password).
			Validate(func(s string) error {
				if len(s) < 8 {
					return errors.New("password must be at least 8 characters")
				}
				return nil
			}))
	}
	if len(fields) == 0 {
		return nil
	}

	form := huh.NewForm(huh.NewGroup(fields...)).WithTheme(huh.ThemeCatppuccin())
	if err := form.Run(); err != nil {
		return err
	}

	a.Username = strings.TrimSpace(a.Username)
	a.Email = strings.TrimSpace(a.Email)
	return nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

// PrintTitle prints a section heading.
func PrintTitle(msg string) {
	fmt.Println(titleStyle.Render(msg))
}

// PrintSuccess prints a success message.
func PrintSuccess(msg string) {
	fmt.Println(successStyle.Render(msg))
}

// PrintDetail prints an indented key/value line with a dimmed key.
func PrintDetail(key string, value any) {
	fmt.Printf("  %s%v\n", keyStyle.Render(key+":"), value)
}

// PrintError prints an error message.
func PrintError(msg string) {
	fmt.Println(errorStyle.Render("Error: " + msg))
}
