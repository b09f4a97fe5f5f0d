package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    ParsedSpec
		wantErr bool
	}{
		{name: "five field cron", raw: "*/5 * * * *", want: ParsedSpec{Kind: SpecCron, Cron: "*/5 * * * *"}},
		{name: "descriptor", raw: "@hourly", want: ParsedSpec{Kind: SpecCron, Cron: "@hourly"}},
		{name: "every descriptor", raw: "@every 55m", want: ParsedSpec{Kind: SpecCron, Cron: "@every 55m"}},
		{name: "cron prefix", raw: "CRON: 0 3 * * *", want: ParsedSpec{Kind: SpecCron, Cron: "0 3 * * *"}},
		{name: "duration", raw: "2h30m", want: ParsedSpec{Kind: SpecInterval, Every: 150 * time.Minute}},
		{name: "hhmm", raw: "00:50", want: ParsedSpec{Kind: SpecInterval, Every: 50 * time.Minute}},
		{name: "interval prefix", raw: "interval: 02:30", want: ParsedSpec{Kind: SpecInterval, Every: 150 * time.Minute}},
		{name: "every prefix", raw: "every:10s", want: ParsedSpec{Kind: SpecInterval, Every: 10 * time.Second}},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "empty cron prefix", raw: "cron:", wantErr: true},
		{name: "zero interval", raw: "0s", wantErr: true},
		{name: "zero hhmm", raw: "00:00", wantErr: true},
		{name: "bad minutes", raw: "every:01:75", wantErr: true},
		{name: "garbage", raw: "soon", wantErr: true},
		{name: "negative", raw: "-5m", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
