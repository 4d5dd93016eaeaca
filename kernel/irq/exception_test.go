package irq

import (
	"kestrel/kernel/gate"
	"testing"
)

func TestDescribeExceptionRange(t *testing.T) {
	seen := make(map[string]bool)

	for v := 0; v < int(gate.FirstExternal); v++ {
		ex := Describe(gate.InterruptNumber(v))
		if ex.Mnemonic == "" || ex.Name == "" || ex.Source == "" {
			t.Errorf("[vector %d] expected a complete descriptor; got %+v", v, ex)
		}
		if ex.Class == Interrupt && v != int(gate.NMI) {
			t.Errorf("[vector %d] expected an exception class; got %s", v, ex.Class)
		}
		if ex.Mnemonic != reservedException.Mnemonic {
			if seen[ex.Mnemonic] {
				t.Errorf("[vector %d] duplicate mnemonic %q", v, ex.Mnemonic)
			}
			seen[ex.Mnemonic] = true
		}
	}
}

func TestDescribe(t *testing.T) {
	specs := []struct {
		vector       gate.InterruptNumber
		mnemonic     string
		class        Class
		hasErrorCode bool
	}{
		{gate.DivideByZero, "#DE", Fault, false},
		{gate.Breakpoint, "#BP", Trap, false},
		{gate.NMI, "NMI", Interrupt, false},
		{gate.DoubleFault, "#DF", Abort, true},
		{gate.GPFException, "#GP", Fault, true},
		{gate.PageFaultException, "#PF", Fault, true},
		{15, "#RSV", Abort, false},
		{18, "#MC", Abort, false},
		{21, "#CP", Fault, true},
		{31, "#RSV", Abort, false},
		{32, "INTR", Interrupt, false},
		{255, "INTR", Interrupt, false},
	}

	for _, spec := range specs {
		ex := Describe(spec.vector)
		if ex.Mnemonic != spec.mnemonic || ex.Class != spec.class || ex.HasErrorCode != spec.hasErrorCode {
			t.Errorf("[vector %d] expected {%s %s %t}; got {%s %s %t}", spec.vector, spec.mnemonic, spec.class, spec.hasErrorCode, ex.Mnemonic, ex.Class, ex.HasErrorCode)
		}
	}
}

func TestClassString(t *testing.T) {
	specs := map[Class]string{
		Fault:     "Fault",
		Trap:      "Trap",
		Abort:     "Abort",
		Interrupt: "Interrupt",
	}

	for class, exp := range specs {
		if got := class.String(); got != exp {
			t.Errorf("expected %q; got %q", exp, got)
		}
	}
}
