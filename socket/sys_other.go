//go:build !linux && !darwin

package socket

func defaultSys() sysOps { return nil }
