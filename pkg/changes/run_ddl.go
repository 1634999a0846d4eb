// SPDX-License-Identifier: Apache-2.0

package changes

var _ Change = (*RunDDL)(nil)

// RunDDL executes raw DDL transactionally, one statement per direction.
type RunDDL struct {
	Up   string `json:"up"`
	Down string `json:"down"`
}

func (c *RunDDL) Phases() []Phase {
	return []Phase{
		{Up: TxDDL{SQL: c.Up}, Down: TxDDL{SQL: c.Down}},
	}
}

func (c *RunDDL) Validate() error {
	if c.Up == "" && c.Down == "" {
		return InvalidChangeError{Reason: "run_ddl requires at least one of up, down"}
	}
	return nil
}
