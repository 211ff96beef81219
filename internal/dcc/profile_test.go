package dcc

import (
	"errors"
	"reflect"
	"testing"
)

var loco3 = Address{Kind: AddressShort, Value: 3}

func TestFullProfileDecodeSingle(t *testing.T) {
	tests := []struct {
		name    string
		legacy  bool
		cmd     byte
		want    Command
		wantErr error
	}{
		{
			name: "F1 and F2 set",
			cmd:  0x83,
			want: FunctionGroup{Address: loco3, Group: GroupF0F4, Functions: 0b0110},
		},
		{
			name:   "legacy cumulative gate turns on F3",
			legacy: true,
			cmd:    0x83,
			want:   FunctionGroup{Address: loco3, Group: GroupF0F4, Functions: 0b1110},
		},
		{
			name:   "legacy reads F4 from bit 2",
			legacy: true,
			cmd:    0x84,
			want:   FunctionGroup{Address: loco3, Group: GroupF0F4, Functions: 0b10000},
		},
		{
			name: "F3 alone",
			cmd:  0x84,
			want: FunctionGroup{Address: loco3, Group: GroupF0F4, Functions: 0b01000},
		},
		{
			name: "FL headlight",
			cmd:  0x90,
			want: FunctionGroup{Address: loco3, Group: GroupF0F4, Functions: 0b1},
		},
		{
			name: "F8",
			cmd:  0xB8,
			want: FunctionGroup{Address: loco3, Group: GroupF5F8, Functions: 1 << 8},
		},
		{
			name:    "undefined",
			cmd:     0xE0,
			wantErr: ErrUndefinedCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FullProfile{Legacy: tt.legacy}.DecodeSingle(loco3, tt.cmd)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeSingle(%#x) error = %v, want %v", tt.cmd, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeSingle(%#x) unexpected error: %v", tt.cmd, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeSingle(%#x) = %+v, want %+v", tt.cmd, got, tt.want)
			}
		})
	}
}

func TestFullProfileDecodeDouble(t *testing.T) {
	tests := []struct {
		name   string
		legacy bool
		cmd1   byte
		cmd2   byte
		want   Command
	}{
		{
			name: "128-step speed",
			cmd1: 0x3F, cmd2: 0x84,
			want: LocoSpeedDirection{Address: loco3, Mode: Speed128, Speed: 3, Direction: Forward},
		},
		{
			name:   "legacy 128-step speed mask",
			legacy: true,
			cmd1:   0x3F, cmd2: 0x84,
			want: LocoSpeedDirection{Address: loco3, Mode: Speed128, Speed: 4, Direction: Forward},
		},
		{
			name: "F16 set",
			cmd1: 0xDE, cmd2: 0x08,
			want: FunctionGroup{Address: loco3, Group: GroupF13F20, Functions: 1 << 16},
		},
		{
			name:   "legacy never reports F16",
			legacy: true,
			cmd1:   0xDE, cmd2: 0x08,
			want: FunctionGroup{Address: loco3, Group: GroupF13F20},
		},
		{
			name:   "legacy never reports F24",
			legacy: true,
			cmd1:   0xDF, cmd2: 0xFF,
			want: FunctionGroup{Address: loco3, Group: GroupF21F28, Functions: 0xF7 << 21},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FullProfile{Legacy: tt.legacy}.DecodeDouble(loco3, tt.cmd1, tt.cmd2)
			if err != nil {
				t.Fatalf("DecodeDouble() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeDouble(%#x, %#x) = %+v, want %+v", tt.cmd1, tt.cmd2, got, tt.want)
			}
		})
	}

	if _, err := (FullProfile{}).DecodeDouble(loco3, 0xC0, 0x00); !errors.Is(err, ErrUndefinedCommand) {
		t.Errorf("DecodeDouble(0xC0) error = %v, want ErrUndefinedCommand", err)
	}
}

func TestProfileByName(t *testing.T) {
	tests := []struct {
		name    string
		legacy  bool
		want    string
		wantErr error
	}{
		{name: "", want: "full"},
		{name: "full", want: "full"},
		{name: "FULL", legacy: true, want: "full+legacy"},
		{name: "speed_only", want: "speed_only"},
		{name: "bogus", wantErr: ErrUnknownProfile},
	}

	for _, tt := range tests {
		got, err := ProfileByName(tt.name, tt.legacy)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ProfileByName(%q) error = %v, want %v", tt.name, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ProfileByName(%q) unexpected error: %v", tt.name, err)
		}
		if got.Name() != tt.want {
			t.Errorf("ProfileByName(%q).Name() = %q, want %q", tt.name, got.Name(), tt.want)
		}
	}
}

func TestFunctionGroupEnabled(t *testing.T) {
	fg := FunctionGroup{Functions: 1<<0 | 1<<4 | 1<<28}
	if got, want := fg.Enabled(), []int{0, 4, 28}; !reflect.DeepEqual(got, want) {
		t.Errorf("Enabled() = %v, want %v", got, want)
	}
	if fg.On(1) || !fg.On(4) || fg.On(-1) || fg.On(40) {
		t.Errorf("On() gave wrong results for mask %b", fg.Functions)
	}
}
