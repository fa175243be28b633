package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"logisticsassist/api/catalog"
	"logisticsassist/api/telemetry"
)

type ScenarioHandlers struct {
	Catalog *catalog.Catalog
	Access  AccessTrigger
	// IPLookupURL is fetched by the page itself; its answer is sent back
	// through the access beacon.
	IPLookupURL string
}

func NewScenarioHandlers(cat *catalog.Catalog, access AccessTrigger, ipLookupURL string) *ScenarioHandlers {
	return &ScenarioHandlers{Catalog: cat, Access: access, IPLookupURL: ipLookupURL}
}

// Index renders the agent page. A visit from a public address is logged
// right away; otherwise the page's beacon reports the browser's own address.
func (h *ScenarioHandlers) Index(c *gin.Context) {
	if telemetry.IsPublicIP(c.ClientIP()) {
		triggerAccess(h.Access, c, noReport)
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"Scenarios":   h.Catalog.All(),
		"IPLookupURL": h.IPLookupURL,
	})
}

func (h *ScenarioHandlers) ListScenarios(c *gin.Context) {
	c.JSON(http.StatusOK, h.Catalog.All())
}

func (h *ScenarioHandlers) GetScenario(c *gin.Context) {
	s, err := h.Catalog.Get(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Scenario not found", "available": h.Catalog.Names()})
		return
	}
	c.JSON(http.StatusOK, s)
}
