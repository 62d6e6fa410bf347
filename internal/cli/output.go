package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		o.printHealthResult(v)
	case StatusResult:
		o.printStatusResult(v)
	case TokenResult:
		o.printTokenResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

// StatusResult response type
type StatusResult struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	Queued      int `json:"queued"`
}

// TokenResult describes a freshly signed token
type TokenResult struct {
	Username  string    `json:"username"`
	UserID    int64     `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	SavedTo   string    `json:"savedTo,omitempty"`
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s\n", h.Status)
}

func (o *Output) printStatusResult(s StatusResult) {
	fmt.Printf("Connections: %d\n", s.Connections)
	fmt.Printf("Rooms: %d\n", s.Rooms)
	fmt.Printf("Queued: %d\n", s.Queued)
}

func (o *Output) printTokenResult(t TokenResult) {
	fmt.Printf("Player: %s (%d)\n", t.Username, t.UserID)
	fmt.Printf("Expires: %s\n", t.ExpiresAt.Format(time.RFC3339))
	if t.SavedTo != "" {
		fmt.Printf("Saved to: %s\n", t.SavedTo)
	}
	fmt.Printf("Token: %s\n", t.Token)
}
