package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/carpoolio/carpool-api/internal/repository/memory"
)

func TestSeedSlotInheritsGroupTimezone(t *testing.T) {
	st := memory.NewStore()
	fam := st.SeedFamily(100)
	grp := st.SeedGroup("America/New_York", fam)
	slot := st.SeedSlot(grp, time.Now().UTC().Add(24*time.Hour))

	got, err := st.ScheduleSlot(context.Background(), slot)
	assert.NoError(t, err)
	assert.Equal(t, grp, got.GroupID)
	assert.Equal(t, "America/New_York", got.Timezone)
}
