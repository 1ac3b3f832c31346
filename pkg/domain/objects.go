package domain

// Solver object types that mirror transport-engine objects.
const (
	TypeNuclideDensities   = "OpenMCNuclideDensities"
	TypeTallyEditor        = "OpenMCTallyEditor"
	TypeTallyNuclides      = "OpenMCTallyNuclides"
	TypeDomainFilterEditor = "OpenMCDomainFilterEditor"
	TypeWebServerControl   = "WebServerControl"
)

// Controllable parameter names of the mirrored objects.
const (
	ParamNames      = "names"
	ParamDensities  = "densities"
	ParamScores     = "scores"
	ParamNuclides   = "nuclides"
	ParamFilterIDs  = "filter_ids"
	ParamBins       = "bins"
	ParamFilterType = "filter_type"
)

var controllableParams = map[string]map[string]ValueKind{
	TypeNuclideDensities: {
		ParamNames:     KindVectorString,
		ParamDensities: KindVectorReal,
	},
	TypeTallyEditor: {
		ParamScores:    KindVectorString,
		ParamNuclides:  KindVectorString,
		ParamFilterIDs: KindVectorString,
	},
	TypeTallyNuclides: {
		ParamNames: KindVectorString,
	},
	TypeDomainFilterEditor: {
		ParamBins: KindVectorString,
	},
}

// ControllableKind returns the kind of a controllable parameter of an
// object type, or false when the parameter is not controllable.
func ControllableKind(objectType, param string) (ValueKind, bool) {
	k, ok := controllableParams[objectType][param]
	return k, ok
}
