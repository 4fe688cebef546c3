package mlgw

import "github.com/davecgh/go-spew/spew"

// spewGatewayState renders a deep dump of g's internals, in the teacher's
// spew.Sprintf style (lwl.Client.String). Callers must hold g.mu.
func spewGatewayState(g *GatewayState) string {
	return spew.Sprintf(`
mlgw.GatewayState(
  beolinkSource: %v
  connectedMLGW: %v
  connectedML:   %v
  serial:        %v
  stopped:       %v
  broken:        %v
  products:      %v
)
`,
		g.beolinkSource,
		g.connectedMLGW,
		g.connectedML,
		g.serial,
		g.stopped,
		g.broken,
		g.products,
	)
}
