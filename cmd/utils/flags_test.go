package utils

import (
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tos-network/gsanta/santa/santaconfig"
	"github.com/urfave/cli/v2"
)

func runWithFlags(t *testing.T, args []string, action func(ctx *cli.Context) error) {
	t.Helper()
	app := cli.NewApp()
	app.Flags = append(append([]cli.Flag{}, GlobalFlags...), HTTPFlags...)
	app.Action = action
	if err := app.Run(append([]string{"gsanta"}, args...)); err != nil {
		t.Fatalf("run %v: %v", args, err)
	}
}

func TestSetLedgerConfig(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    LedgerConfig
		wantErr bool
	}{
		{
			name: "defaults",
			want: LedgerConfig{Kind: LedgerLocal, RPC: RPCFlag.Value, Contract: DefaultContract},
		},
		{
			name: "eth with contract",
			args: []string{"--ledger", "eth", "--rpc", "ws://node:8546", "--contract", "0x00000000000000000000000000000000000000c0", "--confirm"},
			want: LedgerConfig{
				Kind:     LedgerEth,
				RPC:      "ws://node:8546",
				Contract: common.HexToAddress("0x00000000000000000000000000000000000000c0"),
				Confirm:  true,
			},
		},
		{name: "eth without contract", args: []string{"--ledger", "eth"}, wantErr: true},
		{name: "unknown ledger", args: []string{"--ledger", "paper"}, wantErr: true},
		{name: "bad contract", args: []string{"--contract", "0x12"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runWithFlags(t, tt.args, func(ctx *cli.Context) error {
				var cfg LedgerConfig
				err := SetLedgerConfig(ctx, &cfg)
				if (err != nil) != tt.wantErr {
					t.Fatalf("error mismatch: have %v, want error %v", err, tt.wantErr)
				}
				if err == nil && !reflect.DeepEqual(cfg, tt.want) {
					t.Fatalf("config mismatch: have %+v want %+v", cfg, tt.want)
				}
				return nil
			})
		})
	}
}

func TestSetSantaConfig(t *testing.T) {
	runWithFlags(t, []string{"--sync.concurrency", "2", "--sync.rate", "5"}, func(ctx *cli.Context) error {
		cfg := santaconfig.Defaults
		SetSantaConfig(ctx, &cfg)
		if cfg.FetchConcurrency != 2 || cfg.FetchRate != 5 {
			t.Fatalf("fetch settings not applied: %+v", cfg)
		}
		if cfg.SuccessDismiss != santaconfig.Defaults.SuccessDismiss {
			t.Fatal("unrelated setting changed")
		}
		return nil
	})
}

func TestSetHTTPConfig(t *testing.T) {
	runWithFlags(t, []string{"--http.corsdomain", " http://a.test, ,http://b.test "}, func(ctx *cli.Context) error {
		var cfg HTTPConfig
		SetHTTPConfig(ctx, &cfg)
		if cfg.Addr != HTTPListenAddrFlag.Value {
			t.Fatalf("addr mismatch: have %q", cfg.Addr)
		}
		if want := []string{"http://a.test", "http://b.test"}; !reflect.DeepEqual(cfg.CORSOrigins, want) {
			t.Fatalf("origins mismatch: have %v want %v", cfg.CORSOrigins, want)
		}
		return nil
	})
}
