package marker

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/distribution/depctl/platform"
)

func linuxEnv() Env {
	return NewEnv("3.12", platform.Manylinux)
}

func testLog() *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}

func TestAppliesNoMarkerAlwaysApplies(t *testing.T) {
	if !Applies("six", linuxEnv(), testLog()) {
		t.Errorf("a requirement with no marker should always apply")
	}
}

func TestAppliesSimpleEquality(t *testing.T) {
	env := linuxEnv()
	if !Applies("foo; sys_platform == 'linux'", env, testLog()) {
		t.Errorf("expected marker to apply on linux")
	}
	if Applies("foo; sys_platform == 'win32'", env, testLog()) {
		t.Errorf("expected marker to not apply on linux")
	}
}

func TestAppliesNotEquals(t *testing.T) {
	env := linuxEnv()
	if !Applies("foo; sys_platform != 'win32'", env, testLog()) {
		t.Errorf("expected != to apply")
	}
}

func TestAppliesVersionComparison(t *testing.T) {
	env := linuxEnv() // python_version == "3.12"
	if !Applies("foo; python_version >= '3.8'", env, testLog()) {
		t.Errorf("3.12 >= 3.8 should hold")
	}
	if Applies("foo; python_version < '3.8'", env, testLog()) {
		t.Errorf("3.12 < 3.8 should not hold")
	}
}

func TestAppliesAndOr(t *testing.T) {
	env := linuxEnv()
	if !Applies("foo; sys_platform == 'linux' and python_version >= '3.8'", env, testLog()) {
		t.Errorf("and-clause should apply")
	}
	if Applies("foo; sys_platform == 'win32' and python_version >= '3.8'", env, testLog()) {
		t.Errorf("and-clause should not apply")
	}
	if !Applies("foo; sys_platform == 'win32' or python_version >= '3.8'", env, testLog()) {
		t.Errorf("or-clause should apply via second operand")
	}
}

func TestAppliesNotInBeforeIn(t *testing.T) {
	env := linuxEnv()
	if !Applies("foo; sys_platform not in 'win32 darwin'", env, testLog()) {
		t.Errorf("'not in' should be parsed as a single operator, not 'in' with a leftover 'not'")
	}
	if Applies("foo; sys_platform in 'win32 darwin'", env, testLog()) {
		t.Errorf("linux should not be 'in' the win32/darwin set")
	}
}

func TestAppliesUnparsableMarkerFailsOpen(t *testing.T) {
	if !Applies("foo; this is not a marker expression at all !!!", linuxEnv(), testLog()) {
		t.Errorf("an unparseable marker must still apply (fail open, per the reference implementation)")
	}
}

func TestNameOfExtractsCanonicalName(t *testing.T) {
	if got := NameOf("Requests>=2.0.0; python_version>='3.8'"); got != "requests" {
		t.Errorf("NameOf = %q", got)
	}
}
