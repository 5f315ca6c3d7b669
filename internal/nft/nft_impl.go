package nft

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/nylssoft/godrop/internal/executer"
)

const nftCmd = "nft"

type nft_impl struct {
	options  Options
	timeout  string
	executer executer.Executer
	last     executer.Result
}

func (nft *nft_impl) LastResult() executer.Result {
	return nft.last
}

func (nft *nft_impl) TableExists() bool {
	return nft.probe(listTable(nft.options.Table))
}

func (nft *nft_impl) EnsureTable() error {
	if nft.TableExists() {
		return nil
	}
	return nft.run(addTable(nft.options.Table))
}

func (nft *nft_impl) EnsureElementSet(family Family) error {
	if !nft.options.Enabled(family) {
		return ErrFamilyDisabled
	}
	if nft.probe(listSet(nft.options.Table, family)) {
		return nil
	}
	return nft.run(addSet(nft.options.Table, family, nft.options.UseTimeout, nft.options.Comment))
}

func (nft *nft_impl) EnsureChains() error {
	var lastErr error
	for _, c := range chains {
		if nft.probe(listChain(nft.options.Table, c)) {
			continue
		}
		if err := nft.run(addChain(nft.options.Table, c)); err != nil {
			lastErr = err
			continue
		}
		for _, family := range Families {
			if !nft.options.Enabled(family) {
				continue
			}
			for _, match := range c.matches {
				if err := nft.run(addRule(nft.options.Table, c, family, match, nft.options.UseCounters)); err != nil {
					lastErr = err
				}
			}
		}
	}
	return lastErr
}

func (nft *nft_impl) Prepare() error {
	if err := nft.EnsureTable(); err != nil {
		return err
	}
	var lastErr error
	for _, family := range Families {
		if !nft.options.Enabled(family) {
			continue
		}
		if err := nft.EnsureElementSet(family); err != nil {
			lastErr = err
		}
	}
	if err := nft.EnsureChains(); err != nil {
		lastErr = err
	}
	return lastErr
}

func (nft *nft_impl) FlushSets() (bool, error) {
	var lastErr error
	for _, family := range Families {
		if !nft.probe(listSet(nft.options.Table, family)) {
			log.Debug("Skip flush of missing set.", "set", family.SetName())
			continue
		}
		if err := nft.run(flushSet(nft.options.Table, family)); err != nil {
			lastErr = err
		}
	}
	return nft.TableExists(), lastErr
}

func (nft *nft_impl) DeleteAll() (bool, error) {
	var err error
	if nft.TableExists() {
		err = nft.run(deleteTable(nft.options.Table))
	}
	return !nft.TableExists(), err
}

func (nft *nft_impl) AddElement(cidr string) error {
	prefix, family, err := ParsePrefix(cidr)
	if err != nil {
		return err
	}
	if !nft.options.Enabled(family) {
		return ErrFamilyDisabled
	}
	cmd := addElement(nft.options.Table, family, prefix, nft.timeout)
	out, err := nft.exec(cmd)
	if err != nil && strings.Contains(string(out), "File exists") {
		log.Debug("Element already exists.", "set", family.SetName(), "element", prefix)
		return nil
	}
	return nft.classify(cmd, out, err)
}

// Runs an existence query. Diagnostic output is suppressed and failures are not errors.
func (nft *nft_impl) probe(cmd Command) bool {
	out, err := nft.executer.Query(nftCmd, cmd.Args()...)
	nft.last = executer.NewResult(out, err)
	return err == nil
}

func (nft *nft_impl) run(cmd Command) error {
	out, err := nft.exec(cmd)
	return nft.classify(cmd, out, err)
}

func (nft *nft_impl) exec(cmd Command) ([]byte, error) {
	log.Debug("Run", "cmd", cmd.String())
	out, err := nft.executer.Exec(nftCmd, cmd.Args()...)
	nft.last = executer.NewResult(out, err)
	return out, err
}

func (nft *nft_impl) classify(cmd Command, out []byte, err error) error {
	if err == nil {
		return nil
	}
	checkError(cmd.String(), err, out)
	return &ExecError{Command: cmd.String(), Code: executer.ExitCode(err)}
}

func checkError(cmd string, err error, res []byte) {
	if err != nil {
		log.Error("Command failed.", "cmd", cmd, "err", err, "output", strings.TrimSpace(string(res)))
	}
}
