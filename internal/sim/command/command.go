package command

import "fmt"

// Command is one recognized intent from one author. Only the fields that
// apply to Token are set: Repeat for movement, Units for spawns, PaidAmount
// for superchats.
type Command struct {
	Author     string  `json:"author"`
	Token      Token   `json:"token"`
	Repeat     int     `json:"repeat,omitempty"`
	Units      int     `json:"units,omitempty"`
	PaidAmount float64 `json:"paid_amount,omitempty"`
}

func (c Command) String() string {
	switch {
	case c.Repeat > 1:
		return fmt.Sprintf("%s:%s x%d", c.Author, c.Token, c.Repeat)
	case c.Units > 1:
		return fmt.Sprintf("%s:%s units=%d", c.Author, c.Token, c.Units)
	default:
		return fmt.Sprintf("%s:%s", c.Author, c.Token)
	}
}

// SystemAuthor is the author of commands injected from channel metrics.
const SystemAuthor = "@channel"

// Inject builds a privileged command originating from channel metrics.
func Inject(token Token, units int) Command {
	if units < 1 {
		units = 1
	}
	return Command{Author: SystemAuthor, Token: token, Units: units}
}
