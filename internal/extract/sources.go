package extract

// defaultProfiles covers the Colombian domestic carriers. Keyword sets follow
// the vocabulary each airline's policy pages actually use; carriers without a
// dedicated entry get the generic Spanish sets.
var defaultProfiles = map[string]Profile{
	"avianca": {
		TransferKeywords: []string{
			"cambio de nombre", "transferencia", "cambiar nombre",
			"modificación de nombre", "cambio del pasajero",
		},
		CancellationKeywords: []string{"cancelación", "cancelar", "reembolso", "devolución"},
		TransferHints:        []string{"puede cambiar", "permite cambio", "cambio de nombre"},
	},
	"latam": {
		TransferKeywords:     []string{"cambio de pasajero", "cambio de nombre", "transferencia de boleto"},
		CancellationKeywords: []string{"cancelación", "reembolso", "devolución"},
		TermsURL:             "https://www.latamairlines.com/co/es/condiciones-generales-de-transporte",
	},
	"wingo": {
		TransferKeywords:     []string{"cambio de nombre", "modificar nombre", "cambiar pasajero"},
		CancellationKeywords: []string{"cancelar", "reembolso", "anular reserva"},
		LowCost:              true,
	},
	"satena": {
		TransferKeywords:     []string{"cambio de nombre", "modificar nombre", "cambio de pasajero"},
		CancellationKeywords: []string{"cancelación", "reembolso", "devolución"},
		Notes:                "Aerolínea estatal, rutas a zonas remotas",
	},
	"easyfly": {
		TransferKeywords:     []string{"cambio de nombre", "modificar nombre", "cambio de pasajero"},
		CancellationKeywords: []string{"cancelación", "cancelar", "reembolso"},
	},
	"copa": {
		TransferKeywords:     []string{"cambio de nombre", "transferencia", "cambio del pasajero"},
		CancellationKeywords: []string{"cancelación", "reembolso", "devolución"},
	},
	"jetsmart": {
		TransferKeywords:     []string{"cambio de nombre", "modificar nombre", "cambiar pasajero"},
		CancellationKeywords: []string{"cancelar", "reembolso", "anular"},
		LowCost:              true,
	},
}
