// Package software implements the software manager actor.
//
// Software is managed by plugins, one per software type. An external plugin
// is an executable named after its type and called with one of the
// sub-commands list, prepare, install, remove and finalize. Plugin calls are
// made by a PluginServer running behind an actor.ServerActor, so at most one
// plugin operation runs at a time.
package software
