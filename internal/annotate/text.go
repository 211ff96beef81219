package annotate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-dcc/internal/dcc"
)

// PeriodString formats a duration in seconds with one decimal and the largest
// unit that keeps the value above one.
func PeriodString(t float64) string {
	switch {
	case t == 0 || t >= 1:
		return fmt.Sprintf("%.1f s", t)
	case t <= 1e-12:
		return fmt.Sprintf("%.1f fs", t*1e15)
	case t <= 1e-9:
		return fmt.Sprintf("%.1f ps", t*1e12)
	case t <= 1e-6:
		return fmt.Sprintf("%.1f ns", t*1e9)
	case t <= 1e-3:
		return fmt.Sprintf("%.1f μs", t*1e6)
	default:
		return fmt.Sprintf("%.1f ms", t*1e3)
	}
}

// PreambleTexts returns the type-row texts for a preamble.
func PreambleTexts(count int) []string {
	return []string{"PREAMBLE " + strconv.Itoa(count), "PRE", "P"}
}

// TypeTexts returns the type-row texts for a decoded command.
func TypeTexts(cmd dcc.Command) []string {
	switch c := cmd.(type) {
	case dcc.Idle:
		return []string{"IDLE", "I"}
	case dcc.LocoSpeedDirection:
		return []string{"LOCO", "L"}
	case dcc.FunctionGroup:
		if isAccessory(c.Group) {
			return []string{"FUNC", "F"}
		}
		return []string{"LOCO", "L"}
	case dcc.AccessoryOrAnalog:
		return []string{"FUNC", "F"}
	case dcc.Unknown:
		if c.Undefined || c.Address.Kind != dcc.AddressNone {
			return []string{"LOCO", "L"}
		}
		return []string{"UNKNOWN", "U"}
	case dcc.ChecksumError:
		return []string{
			fmt.Sprintf("WRONG CHECKSUM:%d != %d", c.Computed, c.Received),
			strconv.Itoa(int(c.Received)),
			"WRONG CHECK",
		}
	case dcc.OversizeError:
		return []string{"UNDEFINED SIZE"}
	default:
		return []string{"UNKNOWN", "U"}
	}
}

// AddressText returns the address-row text, or false when the command has no
// address.
func AddressText(cmd dcc.Command) (string, bool) {
	switch c := cmd.(type) {
	case dcc.LocoSpeedDirection:
		return c.Address.String(), true
	case dcc.FunctionGroup:
		return c.Address.String(), true
	case dcc.AccessoryOrAnalog:
		return strconv.Itoa(int(c.Command)), true
	case dcc.Unknown:
		if c.Address.Kind == dcc.AddressNone {
			return "", false
		}
		return c.Address.String(), true
	default:
		return "", false
	}
}

// FunctionTexts returns the func-row texts, or nil when the command has no
// details.
func FunctionTexts(cmd dcc.Command) []string {
	switch c := cmd.(type) {
	case dcc.LocoSpeedDirection:
		if c.EmergencyStop {
			return []string{fmt.Sprintf("ESTOP,D:%d", c.Direction), fmt.Sprintf("ESTOP/%d", c.Direction)}
		}
		return []string{
			fmt.Sprintf("S:%d,D:%d", c.Speed, c.Direction),
			fmt.Sprintf("%d/%d", c.Speed, c.Direction),
		}
	case dcc.FunctionGroup:
		return functionGroupTexts(c)
	case dcc.AccessoryOrAnalog:
		return []string{
			fmt.Sprintf("Type:%d,Value:%d", c.Type, c.Value),
			fmt.Sprintf("%d/%d", c.Type, c.Value),
		}
	case dcc.Unknown:
		if c.Undefined {
			return []string{"UNDEFINED CMD"}
		}
		if c.Address.Kind != dcc.AddressNone {
			return []string{"NOT SUPPORTED"}
		}
		return nil
	default:
		return nil
	}
}

func functionGroupTexts(c dcc.FunctionGroup) []string {
	switch c.Group {
	case dcc.GroupAccessory:
		act := "off"
		if c.Active {
			act = "on"
		}
		return []string{
			fmt.Sprintf("Mod:%d,Inductor:%d/%s", c.Output, c.Inductor, act),
			fmt.Sprintf("%d/%d/%s", c.Output, c.Inductor, act),
		}
	case dcc.GroupAccessoryExtended:
		return []string{
			fmt.Sprintf("Mod:%d,Func:%d", c.Output, c.Functions),
			fmt.Sprintf("%d/%d", c.Output, c.Functions),
		}
	default:
		var b strings.Builder
		for _, n := range c.Enabled() {
			if n == 0 {
				b.WriteString("FL/")
				continue
			}
			b.WriteString("F" + strconv.Itoa(n) + "/")
		}
		if b.Len() == 0 {
			return []string{c.Group.String() + " off", "-"}
		}
		return []string{b.String()}
	}
}

func isAccessory(g dcc.FunctionGroupID) bool {
	return g == dcc.GroupAccessory || g == dcc.GroupAccessoryExtended
}
