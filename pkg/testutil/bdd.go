package testutil

import "testing"

// Given, When, Then and And nest subtests so a failure reads as the scenario
// step it broke, e.g. "Given the router/When scraping /metrics/Then ...".
func Given(t *testing.T, desc string, fn func(t *testing.T)) { step(t, "Given", desc, fn) }

func When(t *testing.T, desc string, fn func(t *testing.T)) { step(t, "When", desc, fn) }

func Then(t *testing.T, desc string, fn func(t *testing.T)) { step(t, "Then", desc, fn) }

// And continues the previous step; it runs as its own subtest.
func And(t *testing.T, desc string, fn func(t *testing.T)) { step(t, "And", desc, fn) }

func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run(keyword+" "+desc, fn)
}
