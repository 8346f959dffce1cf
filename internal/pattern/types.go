package pattern

// Testcase is one bug pattern: a POS case where the operation is a real bug
// and a NEG case where it is not.
type Testcase struct {
	Description string   `yaml:"description" validate:"required"`
	Tags        []string `yaml:"tags"`
	Features    []string `yaml:"features"`
	Type        string   `yaml:"type"`
	Value       string   `yaml:"value"`
	Pos         Case     `yaml:"POS" validate:"required"`
	Neg         Case     `yaml:"NEG" validate:"required"`
}

// Case pairs the bug-relevant expression with the program that hosts it.
// Both templates use SOURCE!() as their hole.
type Case struct {
	Source string `yaml:"source" validate:"required"`
	Code   string `yaml:"code" validate:"required"`
}

// Flow is a reusable code shape that re-embeds a carrier expression.
// Code may contain SOURCE!(), TYPE!(), VALUE!(), COND!() and EXPRE!(param).
type Flow struct {
	Name string `yaml:"name" validate:"required"`
	Code string `yaml:"code" validate:"required"`
}

// Library is everything loaded from a config directory.
type Library struct {
	Testcases []Testcase
	Flows     []Flow
	Packs     []PackInfo
}

// PackInfo is a summary of a pattern pack for listing.
type PackInfo struct {
	Name          string
	Description   string
	Version       string
	Author        string
	Enabled       bool
	Path          string
	TestcaseCount int
	Err           error
}
