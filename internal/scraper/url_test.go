package scraper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "already canonical", in: "https://example.com/docs", want: "https://example.com/docs"},
		{name: "uppercase host", in: "https://EXAMPLE.com/Docs", want: "https://example.com/Docs"},
		{name: "default https port", in: "https://example.com:443/docs", want: "https://example.com/docs"},
		{name: "default http port", in: "http://example.com:80/docs", want: "http://example.com/docs"},
		{name: "explicit port kept", in: "https://example.com:8443/docs", want: "https://example.com:8443/docs"},
		{name: "fragment stripped", in: "https://example.com/docs#intro", want: "https://example.com/docs"},
		{name: "trailing slash trimmed", in: "https://example.com/docs/", want: "https://example.com/docs"},
		{name: "root path trimmed", in: "https://example.com/", want: "https://example.com"},
		{name: "query sorted", in: "https://example.com/s?b=2&a=1", want: "https://example.com/s?a=1&b=2"},
		{name: "surrounding whitespace", in: "  https://example.com/docs  ", want: "https://example.com/docs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeURL(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeURL_Rejects(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "ftp://example.com/file", "mailto:hi@example.com", "/relative/path", "://bad"} {
		_, err := NormalizeURL(in)
		require.Error(t, err, "input %q", in)
	}
}

func TestResolveLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base string
		href string
		want string
	}{
		{name: "relative path", base: "https://example.com/docs/intro", href: "../api", want: "https://example.com/api"},
		{name: "absolute href", base: "https://example.com/docs", href: "https://example.com/about", want: "https://example.com/about"},
		{name: "fragment only variant", base: "https://example.com/docs", href: "/docs#section", want: "https://example.com/docs"},
		{name: "cross host", base: "https://example.com/docs", href: "https://other.com/page", want: "https://other.com/page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ResolveLink(tt.base, tt.href)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestResolveLink_RejectsNonHTTP(t *testing.T) {
	t.Parallel()

	for _, href := range []string{"mailto:hi@example.com", "javascript:void(0)", "tel:+15551234"} {
		_, err := ResolveLink("https://example.com", href)
		require.Error(t, err, "href %q", href)
	}
}

func TestSameHost(t *testing.T) {
	t.Parallel()

	require.True(t, SameHost("https://example.com/a", "https://example.com/b"))
	require.True(t, SameHost("https://example.com", "http://example.com:8080/x"))
	require.False(t, SameHost("https://example.com/a", "https://sub.example.com/a"))
	require.False(t, SameHost("https://example.com", "https://other.com"))
}
