package processor

import (
	"github.com/namevault/namevault/internal/processor/client"
	"go.uber.org/fx"
)

var Module = fx.Module("processor.client",
	fx.Provide(client.New),
)
