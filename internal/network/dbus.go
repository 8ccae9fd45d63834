package network

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	nmDest         = "org.freedesktop.NetworkManager"
	nmPath         = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	nmSettingsPath = dbus.ObjectPath("/org/freedesktop/NetworkManager/Settings")
)

// DBus queries NetworkManager over the system bus.
type DBus struct{}

func (DBus) connect(ctx context.Context) (*dbus.Conn, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	return conn, nil
}

// Known implements Lister.
func (d DBus) Known(ctx context.Context) ([]string, error) {
	conn, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var paths []dbus.ObjectPath
	err = conn.Object(nmDest, nmSettingsPath).
		CallWithContext(ctx, nmDest+".Settings.ListConnections", 0).
		Store(&paths)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	var names []string
	for _, p := range paths {
		var settings map[string]map[string]dbus.Variant
		err := conn.Object(nmDest, p).
			CallWithContext(ctx, nmDest+".Settings.Connection.GetSettings", 0).
			Store(&settings)
		if err != nil {
			continue
		}
		if id, ok := settings["connection"]["id"].Value().(string); ok && id != "" {
			names = append(names, id)
		}
	}
	return names, nil
}

// Current implements Lister.
func (d DBus) Current(ctx context.Context) (string, bool, error) {
	conn, err := d.connect(ctx)
	if err != nil {
		return "", false, err
	}
	defer conn.Close()

	v, err := conn.Object(nmDest, nmPath).GetProperty(nmDest + ".ActiveConnections")
	if err != nil {
		return "", false, fmt.Errorf("active connections: %w", err)
	}
	paths, _ := v.Value().([]dbus.ObjectPath)
	for _, p := range paths {
		obj := conn.Object(nmDest, p)
		typ, err := obj.GetProperty(nmDest + ".Connection.Active.Type")
		if err != nil {
			continue
		}
		if s, _ := typ.Value().(string); !isWireless(s) {
			continue
		}
		id, err := obj.GetProperty(nmDest + ".Connection.Active.Id")
		if err != nil {
			continue
		}
		if name, _ := id.Value().(string); name != "" {
			return name, true, nil
		}
	}
	return "", false, nil
}
