// Package device provides the device registry and handles for Tion breezers.
//
// A device is identified by its BLE MAC address. Its Kind (the model
// family, inferred from the advertisement name) selects both the
// capability set and the handle variant used to talk to it.
//
// # Components
//
//   - Registry: RWMutex-guarded cache over a Repository. Returned values
//     are deep copies.
//   - SQLiteRepository: devices and device_groups tables. Deletion is soft.
//   - Handle: a live connection built by a Factory over a Transport. The
//     variant filters writes to the properties the model accepts.
//
// # Capabilities
//
//	Kind      fan  heater  temperature  light  mode
//	Tion       x
//	TionS3     x     x         x
//	TionS4     x     x         x                 x
//	TionLite   x                          x
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo, repo)
//	registry.SetLogger(log)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//	d, err := registry.Register(ctx, "aa:bb:cc:dd:ee:01", "Tion_Breezer_S3")
package device
