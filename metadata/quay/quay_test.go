package quay_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"gopkg.in/check.v1"

	"github.com/mycok/uGraph/metadata"
	"github.com/mycok/uGraph/metadata/mocks"
	"github.com/mycok/uGraph/metadata/quay"
)

var _ = check.Suite(new(QuaySourceTestSuite))

func Test(t *testing.T) {
	// Run all gocheck test-suites
	check.TestingT(t)
}

type QuaySourceTestSuite struct {
	srv      *httptest.Server
	mu       sync.Mutex
	requests []*http.Request
	labels   map[string]string // manifest ref -> response body
	status   int
	flaky    int // number of requests answered with 503 before recovering
}

func (s *QuaySourceTestSuite) SetUpTest(c *check.C) {
	s.requests = nil
	s.labels = make(map[string]string)
	s.status = http.StatusOK
	s.flaky = 0

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r)
		flaky := s.flaky > 0
		if flaky {
			s.flaky--
		}
		s.mu.Unlock()

		if flaky {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		if s.status != http.StatusOK {
			w.WriteHeader(s.status)
			return
		}

		ref := strings.TrimPrefix(r.URL.Path, "/api/v1/repository/openshift/release/manifest/")
		ref = strings.TrimSuffix(ref, "/labels")

		body, ok := s.labels[ref]
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func (s *QuaySourceTestSuite) TearDownTest(c *check.C) {
	s.srv.Close()
}

func (s *QuaySourceTestSuite) TestAPILabelsOverrideImageLabels(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	src := mocks.NewMockSource(ctrl)
	src.EXPECT().Tags(gomock.Any()).Return([]metadata.Tag{
		{
			Name:   "1.0.0",
			Digest: "sha256:aaa",
			Labels: map[string]string{
				"io.openshift.upgrades.graph.release.channels": "stable",
				"vendor": "acme",
			},
		},
		{Name: "1.1.0", Digest: "sha256:bbb"},
	}, nil)

	s.labels["sha256:aaa"] = `{"labels":[{"key":"io.openshift.upgrades.graph.release.channels","value":"stable,fast"}]}`

	qs := s.newSource(c, src, "")
	tags, err := qs.Tags(context.TODO())
	c.Assert(err, check.IsNil)

	c.Assert(tags, check.DeepEquals, []metadata.Tag{
		{
			Name:   "1.0.0",
			Digest: "sha256:aaa",
			Labels: map[string]string{
				"io.openshift.upgrades.graph.release.channels": "stable,fast",
				"vendor": "acme",
			},
		},
		{Name: "1.1.0", Digest: "sha256:bbb"},
	})

	c.Assert(s.recorded(), check.HasLen, 2)
	c.Assert(s.recorded()[0].URL.Query().Get("filter"), check.Equals, quay.DefaultLabelFilter)
	c.Assert(s.recorded()[0].Header.Get("Authorization"), check.Equals, "")
}

func (s *QuaySourceTestSuite) TestManifestRefLabelRedirectsLookup(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	src := mocks.NewMockSource(ctrl)
	src.EXPECT().Tags(gomock.Any()).Return([]metadata.Tag{
		{
			Name:   "1.0.0",
			Digest: "sha256:aaa",
			Labels: map[string]string{quay.DefaultManifestRefKey: "sha256:ccc"},
		},
	}, nil)

	s.labels["sha256:ccc"] = `{"labels":[{"key":"io.openshift.upgrades.graph.previous.add","value":"0.9.0"}]}`

	tags, err := s.newSource(c, src, "").Tags(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(tags[0].Labels["io.openshift.upgrades.graph.previous.add"], check.Equals, "0.9.0")
}

func (s *QuaySourceTestSuite) TestBearerToken(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	tokenPath := filepath.Join(c.MkDir(), "token")
	c.Assert(os.WriteFile(tokenPath, []byte("s3cr3t\n"), 0o600), check.IsNil)

	src := mocks.NewMockSource(ctrl)
	src.EXPECT().Tags(gomock.Any()).Return([]metadata.Tag{{Name: "1.0.0", Digest: "sha256:aaa"}}, nil)

	_, err := s.newSource(c, src, tokenPath).Tags(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(s.recorded(), check.HasLen, 1)
	c.Assert(s.recorded()[0].Header.Get("Authorization"), check.Equals, "Bearer s3cr3t")
}

func (s *QuaySourceTestSuite) TestAPIFailureFailsCollection(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	s.status = http.StatusForbidden

	src := mocks.NewMockSource(ctrl)
	src.EXPECT().Tags(gomock.Any()).Return([]metadata.Tag{{Name: "1.0.0", Digest: "sha256:aaa"}}, nil)

	_, err := s.newSource(c, src, "").Tags(context.TODO())
	c.Assert(err, check.ErrorMatches, `(?s)quay source: unable to fetch API labels: .*tag "1.0.0": labels request: unexpected status 403.*`)
}

func (s *QuaySourceTestSuite) TestTransientAPIFailureIsRetried(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	s.flaky = 1
	s.labels["sha256:aaa"] = `{"labels":[{"key":"io.openshift.upgrades.graph.release.channels","value":"fast"}]}`

	src := mocks.NewMockSource(ctrl)
	src.EXPECT().Tags(gomock.Any()).Return([]metadata.Tag{{Name: "1.0.0", Digest: "sha256:aaa"}}, nil)

	tags, err := s.newSource(c, src, "").Tags(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(tags[0].Labels["io.openshift.upgrades.graph.release.channels"], check.Equals, "fast")
	c.Assert(s.recorded(), check.HasLen, 2)
}

func (s *QuaySourceTestSuite) TestConcurrentLookupsKeepSourceOrder(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	var in []metadata.Tag
	for i := 0; i < 32; i++ {
		digest := fmt.Sprintf("sha256:%03d", i)
		in = append(in, metadata.Tag{Name: fmt.Sprintf("1.%d.0", i), Digest: digest})
		s.labels[digest] = fmt.Sprintf(`{"labels":[{"key":"index","value":"%d"}]}`, i)
	}

	src := mocks.NewMockSource(ctrl)
	src.EXPECT().Tags(gomock.Any()).Return(in, nil)

	tags, err := s.newSource(c, src, "").Tags(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(tags, check.HasLen, len(in))

	for i, tag := range tags {
		c.Assert(tag.Name, check.Equals, in[i].Name)
		c.Assert(tag.Labels["index"], check.Equals, fmt.Sprint(i))
	}
	c.Assert(s.recorded(), check.HasLen, len(in))
}

func (s *QuaySourceTestSuite) TestWrappedSourceFailure(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	src := mocks.NewMockSource(ctrl)
	src.EXPECT().Tags(gomock.Any()).Return(nil, errors.New("registry unreachable"))

	_, err := s.newSource(c, src, "").Tags(context.TODO())
	c.Assert(err, check.ErrorMatches, "registry unreachable")
	c.Assert(s.recorded(), check.HasLen, 0)
}

func (s *QuaySourceTestSuite) TestConfigValidation(c *check.C) {
	_, err := quay.New(quay.Config{TokenPath: filepath.Join(c.MkDir(), "missing")})
	c.Assert(err, check.ErrorMatches, "(?s)quay source: config validation failed: .*metadata source not provided.*repository not provided.*unable to read API token.*")
}

func (s *QuaySourceTestSuite) recorded() []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*http.Request(nil), s.requests...)
}

func (s *QuaySourceTestSuite) newSource(c *check.C, src metadata.Source, tokenPath string) *quay.Source {
	qs, err := quay.New(quay.Config{
		Source:     src,
		APIBase:    s.srv.URL + "/api/v1/",
		Repository:   "openshift/release",
		TokenPath:    tokenPath,
		NumOfWorkers: 8,
	})
	c.Assert(err, check.IsNil)

	return qs
}
