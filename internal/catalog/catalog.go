// Package catalog assembles every conformance test into one list.
package catalog

import (
	"fmt"
	"sort"

	"github.com/fxnlabs/ptx-conformance/internal/testcase"
)

var families = []func() []testcase.Case{
	testcase.BitField,
	testcase.IntegerArithmetic,
	testcase.Shifts,
	testcase.Compare,
	testcase.FloatArithmetic,
	testcase.Transcendental,
	testcase.Conversions,
	testcase.MicroFloat,
}

// All returns every test sorted by name. It panics if two tests share a
// name.
func All() []testcase.Case {
	var tests []testcase.Case
	seen := make(map[string]bool)
	for _, family := range families {
		for _, c := range family() {
			if seen[c.Name] {
				panic(fmt.Sprintf("catalog: duplicate test name %s", c.Name))
			}
			seen[c.Name] = true
			tests = append(tests, c)
		}
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].Name < tests[j].Name })
	return tests
}

// Lookup finds a test by its exact name in a list sorted as All returns it.
func Lookup(tests []testcase.Case, name string) (testcase.Case, error) {
	i := sort.Search(len(tests), func(i int) bool { return tests[i].Name >= name })
	if i < len(tests) && tests[i].Name == name {
		return tests[i], nil
	}
	return testcase.Case{}, fmt.Errorf("unknown test: %s", name)
}
