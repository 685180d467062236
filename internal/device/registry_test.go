package device

import (
	"context"
	"errors"
	"testing"
)

func setupRegistry(t *testing.T) *Registry {
	t.Helper()
	repo := NewSQLiteRepository(setupTestDB(t))
	reg := NewRegistry(repo, repo)
	if err := reg.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	return reg
}

func TestRegistry_Register(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	d, err := reg.Register(ctx, "aa:bb:cc:dd:ee:01", "Tion_Breezer_S3_living_room")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if d.ID != "AA:BB:CC:DD:EE:01" || d.Address != d.ID {
		t.Errorf("Register() id/address = %q/%q, want normalised MAC", d.ID, d.Address)
	}
	if d.Kind != KindS3 {
		t.Errorf("Register() kind = %q, want %q", d.Kind, KindS3)
	}
	if d.Name != "S3 Living Room" {
		t.Errorf("Register() name = %q, want %q", d.Name, "S3 Living Room")
	}
	if d.Model == nil || *d.Model != "S3" {
		t.Errorf("Register() model = %v, want S3", d.Model)
	}
	if !d.IsActive || d.IsPaired {
		t.Errorf("Register() flags = active %v paired %v, want active unpaired", d.IsActive, d.IsPaired)
	}

	if _, err := reg.Register(ctx, "not-a-mac", "Tion_Breezer_S3"); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Register() bad address error = %v, want ErrInvalidAddress", err)
	}
}

func TestRegistry_ListConnectable(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	for i, name := range []string{"Tion_Breezer_S3", "Tion_Breezer_Lite", "Tion_Breezer_S4"} {
		addr := []string{"AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:02", "AA:BB:CC:DD:EE:03"}[i]
		if _, err := reg.Register(ctx, addr, name); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}
	// Only paired devices are connectable.
	for _, id := range []string{"AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:02"} {
		if err := reg.SetPaired(ctx, id, true); err != nil {
			t.Fatalf("SetPaired() error = %v", err)
		}
	}
	if err := reg.DeleteDevice(ctx, "AA:BB:CC:DD:EE:02"); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}

	connectable, err := reg.ListConnectable(ctx)
	if err != nil {
		t.Fatalf("ListConnectable() error = %v", err)
	}
	if len(connectable) != 1 {
		t.Fatalf("ListConnectable() = %d devices, want 1", len(connectable))
	}
	if _, ok := connectable["AA:BB:CC:DD:EE:01"]; !ok {
		t.Error("ListConnectable() missing the paired active device")
	}

	active, err := reg.ListActiveDevices(ctx)
	if err != nil {
		t.Fatalf("ListActiveDevices() error = %v", err)
	}
	if len(active) != 2 {
		t.Errorf("ListActiveDevices() = %d devices, want 2", len(active))
	}

	deleted, err := reg.GetDevice(ctx, "AA:BB:CC:DD:EE:02")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if deleted.IsActive || deleted.IsPaired {
		t.Error("DeleteDevice() should leave the device inactive and unpaired")
	}
}

func TestRegistry_CapabilitiesFor(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	if _, err := reg.Register(ctx, "AA:BB:CC:DD:EE:04", "Tion_Breezer_S4"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	caps, err := reg.CapabilitiesFor(ctx, "AA:BB:CC:DD:EE:04")
	if err != nil {
		t.Fatalf("CapabilitiesFor() error = %v", err)
	}
	if !caps.Has(CapModeControl) || !caps.Has(CapTemperatureControl) || caps.Has(CapLightControl) {
		t.Errorf("CapabilitiesFor(S4) = %v", caps)
	}

	if _, err := reg.CapabilitiesFor(ctx, "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("CapabilitiesFor() missing error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	if _, err := reg.Register(ctx, "AA:BB:CC:DD:EE:01", "Tion_Breezer_S3"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	d, err := reg.GetDevice(ctx, "AA:BB:CC:DD:EE:01")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	d.Name = "mutated"
	*d.Model = "mutated"

	again, err := reg.GetDevice(ctx, "AA:BB:CC:DD:EE:01")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if again.Name == "mutated" || *again.Model == "mutated" {
		t.Error("registry cache was mutated through a returned device")
	}
}

func TestRegistry_UpdateDevice(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	if _, err := reg.Register(ctx, "AA:BB:CC:DD:EE:01", "Tion_Breezer_S3"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	room := "office"
	err := reg.UpdateDevice(ctx, &Device{ID: "AA:BB:CC:DD:EE:01", Name: "Office", Kind: KindS4, Room: &room})
	if err != nil {
		t.Fatalf("UpdateDevice() error = %v", err)
	}

	caps, err := reg.CapabilitiesFor(ctx, "AA:BB:CC:DD:EE:01")
	if err != nil {
		t.Fatalf("CapabilitiesFor() error = %v", err)
	}
	if !caps.Has(CapModeControl) {
		t.Error("kind change should be reflected in capabilities")
	}

	err = reg.UpdateDevice(ctx, &Device{ID: "AA:BB:CC:DD:EE:01", Name: "Office", Kind: "Dyson"})
	if !errors.Is(err, ErrInvalidKind) {
		t.Errorf("UpdateDevice() unknown kind error = %v, want ErrInvalidKind", err)
	}
}

func TestRegistry_Groups(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	for _, addr := range []string{"AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:02"} {
		if _, err := reg.Register(ctx, addr, "Tion_Breezer_S3"); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}

	g, err := reg.CreateGroup(ctx, "Bedrooms", []string{"AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:02"})
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	if g.ID == "" {
		t.Error("CreateGroup() should assign an ID")
	}

	if err := reg.DeleteDevice(ctx, "AA:BB:CC:DD:EE:02"); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}
	members, err := reg.GroupMembers(ctx, g.ID)
	if err != nil {
		t.Fatalf("GroupMembers() error = %v", err)
	}
	if len(members) != 1 || members[0].ID != "AA:BB:CC:DD:EE:01" {
		t.Errorf("GroupMembers() = %+v, want only the active member", members)
	}

	if _, err := reg.CreateGroup(ctx, "Dupes", []string{"x", "x"}); !errors.Is(err, ErrInvalidGroup) {
		t.Errorf("CreateGroup() duplicate members error = %v, want ErrInvalidGroup", err)
	}

	if err := reg.DeleteGroup(ctx, g.ID); err != nil {
		t.Fatalf("DeleteGroup() error = %v", err)
	}
	if _, err := reg.GroupMembers(ctx, g.ID); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("GroupMembers() deleted group error = %v, want ErrGroupNotFound", err)
	}
}
