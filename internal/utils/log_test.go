package utils

import "testing"

func TestNopLoggerNeverPanics(t *testing.T) {
	l := NopLogger
	l.Debugf("x")
	l.Infof("x")
	l.Errorf("x")
	if l.Debug() {
		t.Fatal("nop logger should report Debug() == false")
	}
	_ = l.WithPrefix("conn")
}

func TestMinMax(t *testing.T) {
	if Min(3, 5) != 3 {
		t.Fatal("Min wrong")
	}
	if Max(3, 5) != 5 {
		t.Fatal("Max wrong")
	}
}
