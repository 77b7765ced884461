// Package keymap holds the project keymaps.
//
// Four bindings are always present in normal mode:
//
//	<leader>pb  build
//	<leader>pr  run
//	<leader>pd  debug
//	<leader>pf  open project files
//
// Project files add their own through the keymaps setting. The project set
// is replaced on every configuration load, so bindings from a previous
// project never leak into the next one, and a project binding on the same
// keys hides the default.
//
// Keys use Vim notation and are normalized before comparison; <leader>
// stays symbolic and is resolved by the editor.
package keymap
