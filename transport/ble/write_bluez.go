//go:build linux && !baremetal

package ble

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"tinygo.org/x/bluetooth"

	"github.com/moffa90/go-mw4ota/protocol"
)

const (
	bluezService        = "org.bluez"
	bluezDevice         = "org.bluez.Device1"
	bluezGattService    = "org.bluez.GattService1"
	bluezCharacteristic = "org.bluez.GattCharacteristic1"
	getManagedObjects   = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
)

// managedObjects is the reply of the BlueZ object manager.
type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// newRequestWriter resolves the BlueZ object of every discovered
// characteristic. The tinygo Linux backend only sends write commands, so
// write requests are issued on BlueZ directly with the "request" write type
// (BlueZ 5.51 or later).
func newRequestWriter(device bluetooth.Device, chars map[protocol.Endpoint]bluetooth.DeviceCharacteristic) (requestWriter, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}

	var objects managedObjects
	if err := conn.Object(bluezService, "/").Call(getManagedObjects, 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("list bluez objects: %w", err)
	}

	paths, err := characteristicPaths(objects, device.Address.String())
	if err != nil {
		return nil, err
	}

	targets := make(map[protocol.Endpoint]dbus.BusObject, len(chars))
	for ep := range chars {
		path, ok := paths[ep]
		if !ok {
			return nil, fmt.Errorf("characteristic %s (%s) not exported by bluez", ep, ep.CharacteristicUUID())
		}
		targets[ep] = conn.Object(bluezService, path)
	}

	return func(ctx context.Context, ep protocol.Endpoint, value []byte) error {
		obj, ok := targets[ep]
		if !ok {
			return fmt.Errorf("characteristic %s not writable", ep.CharacteristicUUID())
		}
		options := map[string]dbus.Variant{"type": dbus.MakeVariant("request")}
		return obj.CallWithContext(ctx, bluezCharacteristic+".WriteValue", 0, value, options).Err
	}, nil
}

// characteristicPaths maps the endpoints of the device with the given
// address to their BlueZ object paths.
func characteristicPaths(objects managedObjects, address string) (map[protocol.Endpoint]dbus.ObjectPath, error) {
	var devicePath dbus.ObjectPath
	for path, ifaces := range objects {
		if props, ok := ifaces[bluezDevice]; ok && strings.EqualFold(stringProp(props, "Address"), address) {
			devicePath = path
			break
		}
	}
	if devicePath == "" {
		return nil, fmt.Errorf("device %s not known to bluez", address)
	}

	paths := make(map[protocol.Endpoint]dbus.ObjectPath)
	prefix := string(devicePath) + "/"
	for path, ifaces := range objects {
		props, ok := ifaces[bluezCharacteristic]
		if !ok || !strings.HasPrefix(string(path), prefix) {
			continue
		}
		servicePath, _ := props["Service"].Value().(dbus.ObjectPath)
		serviceUUID := stringProp(objects[servicePath][bluezGattService], "UUID")
		if ep, ok := endpointFor(serviceUUID, stringProp(props, "UUID")); ok {
			paths[ep] = path
		}
	}
	return paths, nil
}

func stringProp(props map[string]dbus.Variant, name string) string {
	v, ok := props[name]
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}
