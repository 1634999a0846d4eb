// SPDX-License-Identifier: Apache-2.0

package changes

import (
	"fmt"

	"github.com/lib/pq"
)

var (
	_ Change = (*AddConstraint)(nil)
	_ Change = (*DropConstraint)(nil)
)

// Constraint describes a CHECK or FOREIGN KEY constraint on a table or a
// domain. Exactly one of Table/Domain and exactly one of Check /
// ForeignKey+References must be set.
type Constraint struct {
	Table  string `json:"table,omitempty"`
	Domain string `json:"domain,omitempty"`
	Name   string `json:"name"`

	Check string `json:"check,omitempty"`

	ForeignKey string `json:"foreign_key,omitempty"`
	References string `json:"references,omitempty"`
}

// alterTarget is `ALTER TABLE <t>` or `ALTER DOMAIN <d>`.
func (c Constraint) alterTarget() string {
	if c.Table != "" {
		return "ALTER TABLE " + pq.QuoteIdentifier(c.Table)
	}
	return "ALTER DOMAIN " + pq.QuoteIdentifier(c.Domain)
}

func (c Constraint) definition() string {
	if c.Check != "" {
		return "CHECK " + c.Check
	}
	return fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s", c.ForeignKey, c.References)
}

func (c Constraint) addSQL() string {
	return fmt.Sprintf("%s ADD CONSTRAINT %s %s NOT VALID",
		c.alterTarget(), pq.QuoteIdentifier(c.Name), c.definition())
}

func (c Constraint) validateSQL() string {
	return fmt.Sprintf("%s VALIDATE CONSTRAINT %s", c.alterTarget(), pq.QuoteIdentifier(c.Name))
}

func (c Constraint) dropSQL() string {
	return fmt.Sprintf("%s DROP CONSTRAINT %s", c.alterTarget(), pq.QuoteIdentifier(c.Name))
}

func (c Constraint) validate() error {
	if c.Name == "" {
		return FieldRequiredError{Name: "name"}
	}
	if (c.Table == "") == (c.Domain == "") {
		return InvalidChangeError{Reason: "exactly one of table, domain is required"}
	}
	hasCheck := c.Check != ""
	hasFK := c.ForeignKey != "" || c.References != ""
	if hasCheck == hasFK {
		return InvalidChangeError{Reason: "exactly one of check, foreign_key is required"}
	}
	if hasFK && (c.ForeignKey == "" || c.References == "") {
		return InvalidChangeError{Reason: "foreign_key and references must be set together"}
	}
	return nil
}

// AddConstraint adds a constraint in two phases: a short exclusive-lock
// `ADD CONSTRAINT ... NOT VALID`, then a `VALIDATE CONSTRAINT` that scans the
// table concurrently with writes. The validation must not share a transaction
// with any other work, which is why it is a phase of its own.
type AddConstraint struct {
	Constraint
}

func (c *AddConstraint) Phases() []Phase {
	return []Phase{
		{Up: TxDDL{SQL: c.addSQL()}, Down: TxDDL{SQL: c.dropSQL()}},
		{Up: TxDDL{SQL: c.validateSQL()}, Down: NoOp{}},
	}
}

func (c *AddConstraint) Validate() error {
	return c.validate()
}

// DropConstraint mirrors AddConstraint: on the way down the constraint is
// re-added NOT VALID first, then validated.
type DropConstraint struct {
	Constraint
}

func (c *DropConstraint) Phases() []Phase {
	return []Phase{
		{Up: NoOp{}, Down: TxDDL{SQL: c.validateSQL()}},
		{Up: TxDDL{SQL: c.dropSQL()}, Down: TxDDL{SQL: c.addSQL()}},
	}
}

func (c *DropConstraint) Validate() error {
	return c.validate()
}
