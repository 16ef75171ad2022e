package trader

import (
	"testing"

	"github.com/hirokisan/bybit/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedPositionSize(t *testing.T) {
	tests := []struct {
		name      string
		positions bybit.V5GetPositionInfoList
		want      string
		wantErr   bool
	}{
		{name: "no position", positions: nil, want: "0"},
		{name: "flat entry", positions: bybit.V5GetPositionInfoList{{Side: bybit.SideNone, Size: "0"}}, want: "0"},
		{name: "long", positions: bybit.V5GetPositionInfoList{{Side: bybit.SideBuy, Size: "0.25"}}, want: "0.25"},
		{name: "short", positions: bybit.V5GetPositionInfoList{{Side: bybit.SideSell, Size: "0.1"}}, want: "-0.1"},
		{
			name: "hedge mode nets out",
			positions: bybit.V5GetPositionInfoList{
				{Side: bybit.SideBuy, Size: "1.5"},
				{Side: bybit.SideSell, Size: "0.5"},
			},
			want: "1",
		},
		{name: "empty size skipped", positions: bybit.V5GetPositionInfoList{{Side: bybit.SideBuy}}, want: "0"},
		{name: "garbage", positions: bybit.V5GetPositionInfoList{{Side: bybit.SideBuy, Size: "lots"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := signedPositionSize(tt.positions)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
