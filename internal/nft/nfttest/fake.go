// Package nfttest provides an in-memory nft binary for tests.
package nfttest

import (
	"slices"
	"strings"

	"github.com/nylssoft/godrop/internal/executer"
)

// Fake interprets the subset of nft commands issued by the nft package and
// keeps the resulting table state in memory. It implements executer.Executer.
type Fake struct {
	Table    bool
	Sets     map[string][]string
	Chains   map[string][]string
	Commands []string
	// commands starting with one of these prefixes fail with exit code 1
	Fail []string
}

func NewFake() *Fake {
	return &Fake{Sets: map[string][]string{}, Chains: map[string][]string{}}
}

func (f *Fake) Exec(cmdName string, args ...string) ([]byte, error) {
	return f.handle(cmdName, args)
}

func (f *Fake) Query(cmdName string, args ...string) ([]byte, error) {
	out, err := f.handle(cmdName, args)
	if err != nil {
		// stderr is discarded by Query
		return nil, err
	}
	return out, err
}

// Returns the recorded commands starting with prefix.
func (f *Fake) Count(prefix string) int {
	cnt := 0
	for _, cmd := range f.Commands {
		if strings.HasPrefix(cmd, prefix) {
			cnt++
		}
	}
	return cnt
}

// Returns the recorded mutating commands, omitting list queries.
func (f *Fake) Mutations() []string {
	var ret []string
	for _, cmd := range f.Commands {
		if !strings.HasPrefix(cmd, "list ") {
			ret = append(ret, cmd)
		}
	}
	return ret
}

func (f *Fake) handle(cmdName string, args []string) ([]byte, error) {
	if cmdName == "" {
		return nil, executer.ErrEmptyCommand
	}
	if len(args) > 0 && args[0] == "--" {
		args = args[1:]
	}
	cmd := strings.Join(args, " ")
	f.Commands = append(f.Commands, cmd)
	for _, prefix := range f.Fail {
		if strings.HasPrefix(cmd, prefix) {
			return fail("Error: simulated failure")
		}
	}
	if len(args) < 4 {
		return fail("Error: syntax error")
	}
	verb, object := args[0], args[1]
	name := ""
	if len(args) > 4 {
		name = args[4]
	}
	switch verb + " " + object {
	case "list table":
		if f.Table {
			return []byte("table inet " + args[3] + " {\n}\n"), nil
		}
	case "add table":
		f.Table = true
		return nil, nil
	case "delete table":
		if f.Table {
			f.Table = false
			f.Sets = map[string][]string{}
			f.Chains = map[string][]string{}
			return nil, nil
		}
	case "list set":
		if _, ok := f.Sets[name]; ok {
			return []byte("set " + name + " {\n}\n"), nil
		}
	case "add set":
		if f.Table {
			if _, ok := f.Sets[name]; !ok {
				f.Sets[name] = []string{}
			}
			return nil, nil
		}
	case "flush set":
		if _, ok := f.Sets[name]; ok {
			f.Sets[name] = []string{}
			return nil, nil
		}
	case "list chain":
		if _, ok := f.Chains[name]; ok {
			return []byte("chain " + name + " {\n}\n"), nil
		}
	case "add chain":
		if f.Table {
			if _, ok := f.Chains[name]; !ok {
				f.Chains[name] = []string{}
			}
			return nil, nil
		}
	case "add rule":
		if rules, ok := f.Chains[name]; ok {
			f.Chains[name] = append(rules, strings.Join(args[5:], " "))
			return nil, nil
		}
	case "add element":
		if elements, ok := f.Sets[name]; ok && len(args) > 6 {
			if slices.Contains(elements, args[6]) {
				return fail("Error: Could not process rule: File exists")
			}
			f.Sets[name] = append(elements, args[6])
			return nil, nil
		}
	}
	return fail("Error: No such file or directory")
}

func fail(msg string) ([]byte, error) {
	out := []byte(msg + "\n")
	return out, &executer.ExitError{Code: 1, Output: out}
}
