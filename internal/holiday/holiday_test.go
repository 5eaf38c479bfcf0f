package holiday

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"schedview/internal/model"
)

func TestBundled_2026(t *testing.T) {
	t.Parallel()

	b := NewBundled()
	named := map[time.Month]map[int]string{
		time.January:  {1: "元日", 12: "成人の日"},
		time.February: {11: "建国記念の日", 23: "天皇誕生日"},
		time.March:    {20: "春分の日"},
		time.April:    {29: "昭和の日"},
		time.July:     {20: "海の日"},
		time.August:   {11: "山の日"},
		time.October:  {12: "スポーツの日"},
		time.November: {3: "文化の日", 23: "勤労感謝の日"},
	}
	for m, days := range named {
		assert.Equal(t, days, b.HolidaysFor(2026, m), "month %s", m)
	}
	assert.Empty(t, b.HolidaysFor(2026, time.June))
	assert.Empty(t, b.HolidaysFor(2026, time.December))

	// Substitute and in-between days carry a name too.
	may := b.HolidaysFor(2026, time.May)
	assert.ElementsMatch(t, []int{3, 4, 5, 6}, keys(may))
	assert.NotEmpty(t, may[6])
	sep := b.HolidaysFor(2026, time.September)
	assert.ElementsMatch(t, []int{21, 22, 23}, keys(sep))
	assert.Equal(t, "敬老の日", sep[21])
	assert.Equal(t, "秋分の日", sep[23])
}

func TestBundled_OneOffYears(t *testing.T) {
	t.Parallel()

	b := NewBundled()
	assert.Contains(t, b.HolidaysFor(2019, time.May), 1)
	assert.Contains(t, b.HolidaysFor(2019, time.October), 22)
	assert.NotContains(t, b.HolidaysFor(2019, time.December), 23)

	july := b.HolidaysFor(2021, time.July)
	assert.Equal(t, "海の日", july[22])
	assert.Equal(t, "スポーツの日", july[23])
	assert.ElementsMatch(t, []int{8, 9}, keys(b.HolidaysFor(2021, time.August)))
	assert.Empty(t, b.HolidaysFor(2021, time.October))
}

func TestBundled_ReturnsCopies(t *testing.T) {
	t.Parallel()

	b := NewBundled()
	first := b.HolidaysFor(2026, time.November)
	first[30] = "x"
	delete(first, 3)
	assert.Equal(t, map[int]string{3: "文化の日", 23: "勤労感謝の日"}, b.HolidaysFor(2026, time.November))
}

func keys(m map[int]string) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestMonthOf_SkipsInvalidDays(t *testing.T) {
	t.Parallel()

	calls := 0
	got := monthOf(2026, time.February, func(_ model.Date) (string, bool) {
		calls++
		return "x", true
	})
	assert.Len(t, got, 28)
	assert.Equal(t, 28, calls)

	_, err := dateOf(2026, time.February, 30)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

const cabinetCSV = "国民の祝日・休日月日,国民の祝日・休日名称\r\n" +
	"2027/1/1,元日\r\n" +
	"2027/1/11,成人の日\r\n" +
	"2028/1/1,元日\r\n"

func TestParseTable_ShiftJIS(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := transform.NewWriter(&buf, japanese.ShiftJIS.NewEncoder())
	_, err := w.Write([]byte(cabinetCSV))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	table, err := ParseTable(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	first, last := table.Years()
	assert.Equal(t, 2027, first)
	assert.Equal(t, 2028, last)
	assert.Equal(t, map[int]string{1: "元日", 11: "成人の日"}, table.HolidaysFor(2027, time.January))
}

func TestParseTable_UTF8WithBOM(t *testing.T) {
	t.Parallel()

	table, err := ParseTable(strings.NewReader("\uFEFF" + cabinetCSV))
	require.NoError(t, err)
	assert.True(t, table.Covers(2027))
	assert.False(t, table.Covers(2026))
}

func TestParseTable_Empty(t *testing.T) {
	t.Parallel()

	_, err := ParseTable(strings.NewReader("国民の祝日・休日月日,国民の祝日・休日名称\n"))
	assert.Error(t, err)
}

func TestChain_PrefersCoveredTable(t *testing.T) {
	t.Parallel()

	table, err := ParseTable(strings.NewReader("2026/11/4,臨時休日\n"))
	require.NoError(t, err)

	c := NewChain(nil)
	assert.Equal(t, map[int]string{3: "文化の日", 23: "勤労感謝の日"}, c.HolidaysFor(2026, time.November))

	c.SetTable(table)
	assert.Equal(t, map[int]string{4: "臨時休日"}, c.HolidaysFor(2026, time.November))
	assert.Equal(t, map[int]string{1: "元日", 11: "成人の日"}, c.HolidaysFor(2027, time.January))

	c.SetTable(nil)
	assert.Contains(t, c.HolidaysFor(2026, time.November), 3)
}

type fixedOracle map[int]string

func (f fixedOracle) HolidaysFor(int, time.Month) map[int]string { return f }

func TestChain_UsesGivenFallback(t *testing.T) {
	t.Parallel()

	c := NewChain(fixedOracle{7: "社休日"})
	assert.Equal(t, map[int]string{7: "社休日"}, c.HolidaysFor(2030, time.March))
	assert.False(t, c.HasTable())
}
