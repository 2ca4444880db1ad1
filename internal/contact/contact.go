package contact

import (
	"regexp"
	"strings"
	"time"
)

const StatusNew = "new"

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate reports every missing or malformed field.
func (m Message) Validate() map[string]string {
	errs := map[string]string{}
	if strings.TrimSpace(m.Name) == "" {
		errs["name"] = "Name is required"
	}
	switch email := strings.TrimSpace(m.Email); {
	case email == "":
		errs["email"] = "Email is required"
	case !emailPattern.MatchString(email):
		errs["email"] = "Email is invalid"
	}
	if strings.TrimSpace(m.Subject) == "" {
		errs["subject"] = "Subject is required"
	}
	if strings.TrimSpace(m.Message) == "" {
		errs["message"] = "Message is required"
	}
	return errs
}
