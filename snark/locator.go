package snark

import (
	"fmt"
	"strings"
)

// Locator uniquely identifies a circuit within a batch: the program it
// belongs to and the function (entry point) it implements. Locators are
// comparable and used as map keys.
type Locator struct {
	ProgramID    string
	FunctionName string
}

// NewLocator returns the locator for the given program and function.
func NewLocator(programID, functionName string) Locator {
	return Locator{ProgramID: programID, FunctionName: functionName}
}

// ParseLocator parses a "program/function" string.
func ParseLocator(s string) (Locator, error) {
	program, function, ok := strings.Cut(s, "/")
	if !ok || program == "" || function == "" {
		return Locator{}, fmt.Errorf("invalid locator %q: expected \"program/function\"", s)
	}
	return Locator{ProgramID: program, FunctionName: function}, nil
}

func (l Locator) String() string {
	return l.ProgramID + "/" + l.FunctionName
}
