// Package catalog loads the device model catalog: the list of telescope
// and mount models the core knows how to drive, keyed by display name.
//
// Models come from two sources. device_models.json maps a model name to
// the server family that speaks its protocol plus per-model defaults
// (connection delay, TCP port). An INDI drivers.xml manifest, when
// present, contributes INDI device labels and their driver executables.
//
// The catalog is loaded once at startup and is read-only afterwards.
package catalog
