package errs

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorCode_Render(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code ErrorCode
		want string
	}{
		{MustCode(503, SeverityCritical, LayerInfrastructure, 1), "5030001001"},
		{MustCode(500, SeverityCritical, LayerInfrastructure, 2), "5000001002"},
		{MustCode(401, SeverityExpected, LayerInfrastructure, 3), "4019901003"},
		{MustCode(401, SeverityHigh, LayerInfrastructure, 4), "4011001004"},
		{MustCode(409, SeverityExpected, LayerService, 1), "4099904001"},
		{MustCode(409, SeverityHigh, LayerRepository, 1), "4091002001"},
		{MustCode(422, SeverityLow, LayerPresentation, 999), "4223006999"},
		{MustCode(200, SeverityMedium, LayerDomain, 0), "2002003000"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.code.String())
	}
}

func TestNewCode_RejectsInvalid(t *testing.T) {
	t.Parallel()

	_, err := NewCode(99, SeverityLow, LayerDomain, 1)
	require.Error(t, err)
	_, err = NewCode(600, SeverityLow, LayerDomain, 1)
	require.Error(t, err)
	_, err = NewCode(499, SeverityLow, LayerDomain, 1)
	require.Error(t, err, "unassigned status")
	_, err = NewCode(400, SeverityLow, LayerDomain, -1)
	require.Error(t, err)
	_, err = NewCode(400, SeverityLow, LayerDomain, 1000)
	require.Error(t, err)
	_, err = NewCode(400, Severity(42), LayerDomain, 1)
	require.Error(t, err)
	_, err = NewCode(400, SeverityLow, Layer(0), 1)
	require.Error(t, err)

	require.Panics(t, func() { MustCode(400, SeverityLow, LayerDomain, -5) })
}

// Every valid quadruple renders to the same length and no two render alike.
func TestErrorCode_FixedLengthAndInjective(t *testing.T) {
	t.Parallel()

	severities := []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityExpected}
	layers := []Layer{LayerInfrastructure, LayerRepository, LayerDomain, LayerService, LayerController, LayerPresentation}
	statuses := []int{}
	for s := 100; s <= 599; s++ {
		if http.StatusText(s) != "" {
			statuses = append(statuses, s)
		}
	}
	sequences := []int{0, 1, 9, 10, 99, 100, 500, 999}

	seen := make(map[string]string)
	for _, st := range statuses {
		for _, sev := range severities {
			for _, l := range layers {
				for _, seq := range sequences {
					c := MustCode(st, sev, l, seq)
					r := c.String()
					require.Len(t, r, 10)
					require.True(t, strings.HasSuffix(r, fmt.Sprintf("%03d", seq)))
					key := fmt.Sprintf("%d/%s/%s/%d", st, sev, l, seq)
					if prev, dup := seen[r]; dup {
						t.Fatalf("%s and %s both render %s", prev, key, r)
					}
					seen[r] = key
				}
			}
		}
	}
}

func TestTaxonomy_RegistryIsConsistent(t *testing.T) {
	t.Parallel()

	codes := map[string]Kind{}
	for _, k := range Kinds() {
		c := k.Code()
		r := c.String()
		require.Len(t, r, 10, k.String())
		if other, dup := codes[r]; dup {
			t.Fatalf("%s and %s share %s", k, other, r)
		}
		codes[r] = k

		back, ok := LookupCode(r)
		require.True(t, ok)
		require.Equal(t, k, back)
	}
	_, ok := LookupCode("0000000000")
	require.False(t, ok)
}

func TestKinds_OrderedByCode(t *testing.T) {
	t.Parallel()

	first := Kinds()
	require.Len(t, first, len(kinds))
	for i := 1; i < len(first); i++ {
		require.Less(t, first[i-1].Code().String(), first[i].Code().String())
	}
	require.Equal(t, first, Kinds())
}

func TestTaxonomy_KnownKinds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind     Kind
		status   int
		severity Severity
		layer    Layer
	}{
		{KindDatabaseConnection, 503, SeverityCritical, LayerInfrastructure},
		{KindDatabaseQuery, 500, SeverityCritical, LayerInfrastructure},
		{KindTokenExpired, 401, SeverityExpected, LayerInfrastructure},
		{KindTokenInvalid, 401, SeverityHigh, LayerInfrastructure},
		{KindUserAlreadyExists, 409, SeverityExpected, LayerService},
		{KindInvalidCredentials, 401, SeverityExpected, LayerService},
		{KindVersionConflict, 409, SeverityHigh, LayerRepository},
		{KindPasswordHashing, 500, SeverityCritical, LayerService},
		{KindMigration, 500, SeverityCritical, LayerInfrastructure},
	}
	for _, tc := range cases {
		c := tc.kind.Code()
		require.Equal(t, tc.status, c.HTTPStatus(), tc.kind.String())
		require.Equal(t, tc.severity, c.Severity(), tc.kind.String())
		require.Equal(t, tc.layer, c.Layer(), tc.kind.String())
	}
}
