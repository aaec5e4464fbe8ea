package query

import (
	"errors"
	"net/url"
	"testing"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(new(queryTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

type queryTestSuite struct{}

func (s *queryTestSuite) TestParseParamSet(c *check.C) {
	c.Assert(ParseParamSet("").Names(), check.DeepEquals, []string{})
	c.Assert(ParseParamSet(" channel, arch,,channel ").Names(), check.DeepEquals, []string{"arch", "channel"})
}

func (s *queryTestSuite) TestValidate(c *check.C) {
	set := ParseParamSet("channel,arch")

	c.Assert(set.Validate(url.Values{"channel": {"stable"}, "arch": {""}}), check.IsNil)

	err := set.Validate(url.Values{"id": {"x"}})
	c.Assert(err, check.ErrorMatches, "mandatory client parameters missing: arch, channel")

	var vErr *ValidationError
	c.Assert(errors.As(err, &vErr), check.Equals, true)
	c.Assert(vErr.Missing, check.DeepEquals, []string{"arch", "channel"})

	c.Assert(ParseParamSet("").Validate(nil), check.IsNil)
}

func (s *queryTestSuite) TestFromValues(c *check.C) {
	q := FromValues(url.Values{"channel": {"stable", "fast"}, "empty": {}})

	v, ok := q.Get("channel")
	c.Assert(ok, check.Equals, true)
	c.Assert(v, check.Equals, "stable")

	_, ok = q.Get("empty")
	c.Assert(ok, check.Equals, false)
}

func (s *queryTestSuite) TestParsePathPrefix(c *check.C) {
	specs := map[string]string{
		"":                "",
		"/":               "",
		"api":             "/api",
		"/api/":           "/api",
		"//api/upgrades/": "/api/upgrades",
	}

	for raw, exp := range specs {
		c.Assert(ParsePathPrefix(raw), check.Equals, exp, check.Commentf("raw prefix %q", raw))
	}
}
