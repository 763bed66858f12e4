// Package confloader loads layered configuration with koanf.
//
// Sources, later ones overriding earlier ones:
//
//  1. Defaults: the values already in the target struct
//  2. A YAML file
//  3. Environment variables (KVSTORE_SECTION_KEY -> section.key)
//  4. Overrides, typically command-line flags
//
// Watcher reports changes to the config file so long running commands can
// re-read it.
package confloader
