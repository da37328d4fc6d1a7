package command

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListStatusHandler(t *testing.T) {
	t.Run("returns one folder per STATUS line", func(t *testing.T) {
		h := NewListStatusHandler()
		lines := []string{
			`* LIST (\HasNoChildren) "/" "Default/tel:+33600000001"`,
			`* STATUS "Default/tel:+33600000001" (MESSAGES 3 UIDNEXT 4 UIDVALIDITY 1437039675 HIGHESTMODSEQ 12)`,
			`* LIST (\HasNoChildren) "/" INBOX`,
			`* STATUS INBOX (MESSAGES 0 UIDNEXT 1 UIDVALIDITY 7 HIGHESTMODSEQ 1)`,
			`* STATUS "Default/a \"quoted\" name" (UIDVALIDITY 9 UIDNEXT 20 MESSAGES 19 HIGHESTMODSEQ 18446744073709551615)`,
		}
		matched := 0
		for _, line := range lines {
			if h.HandleLine(line) {
				matched++
			}
		}
		assert.Equal(t, 3, matched)

		folders := h.Result()
		require.Len(t, folders, 3)
		assert.Equal(t, "Default/tel:+33600000001", folders[0].Name)
		assert.Equal(t, uint32(3), folders[0].MessageCount)
		assert.Equal(t, uint32(4), folders[0].UIDNext)
		assert.Equal(t, uint32(1437039675), folders[0].UIDValidity)
		assert.Equal(t, uint64(12), folders[0].HighestModseq)

		assert.Equal(t, "INBOX", folders[1].Name)

		assert.Equal(t, `Default/a "quoted" name`, folders[2].Name)
		assert.Equal(t, uint32(20), folders[2].UIDNext)
		assert.Equal(t, uint64(18446744073709551615), folders[2].HighestModseq)
	})

	t.Run("N status lines give N folders with verbatim counters", func(t *testing.T) {
		for _, n := range []int{0, 1, 7, 50} {
			h := NewListStatusHandler()
			for i := 1; i <= n; i++ {
				h.HandleLine(fmt.Sprintf(`* STATUS "Default/%d" (MESSAGES %d UIDNEXT %d UIDVALIDITY %d HIGHESTMODSEQ %d)`, i, i, i+1, i*1000, i*7))
			}
			folders := h.Result()
			require.Len(t, folders, n)
			for i, f := range folders {
				k := i + 1
				assert.Equal(t, fmt.Sprintf("Default/%d", k), f.Name)
				assert.Equal(t, uint32(k+1), f.UIDNext)
				assert.Equal(t, uint32(k*1000), f.UIDValidity)
				assert.Equal(t, uint64(k*7), f.HighestModseq)
			}
		}
	})

	t.Run("skips malformed lines", func(t *testing.T) {
		h := NewListStatusHandler()
		assert.False(t, h.HandleLine(`* STATUS`))
		assert.False(t, h.HandleLine(`* STATUS "unterminated (MESSAGES 1`))
		assert.Empty(t, h.Result())
	})
}
