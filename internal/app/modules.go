package app

import (
	"github.com/vk/treeclimb/internal/registry"
	"github.com/vk/treeclimb/modules/print"
	"github.com/vk/treeclimb/modules/record"
	"github.com/vk/treeclimb/modules/socketio"
	"github.com/vk/treeclimb/modules/webhook"
)

// coreModules is the definitive list of all sink modules that are compiled
// into the treeclimb binary.
var coreModules = []registry.Module{
	&print.Module{},
	&record.Module{},
	&socketio.Module{},
	&webhook.Module{},
}
