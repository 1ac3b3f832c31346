package controller

import (
	"github.com/aretw0/coupler/pkg/controllable"
	"github.com/aretw0/coupler/pkg/domain"
	"github.com/aretw0/coupler/pkg/hit"
)

func param(key, value string) hit.Param { return hit.Param{Key: key, Value: value} }

// BuildInput returns the input tree appended to the solver command: one
// controllable user object per material, tally and domain filter of snap,
// and a control server suspending at the beginning and end of each timestep.
func BuildInput(snap domain.Snapshot, port int) *hit.Node {
	root := hit.New()
	objects := root.Append(domain.UserObjectsBlock())

	for _, m := range snap.Materials {
		objects.Append(domain.MaterialObject(m.ID),
			param("type", domain.TypeNuclideDensities),
			param("material_id", hit.Int(m.ID)),
			param(domain.ParamNames, hit.Quote(m.Nuclides...)),
			param(domain.ParamDensities, hit.Reals(m.Densities)),
		)
	}
	for _, t := range snap.Tallies {
		objects.Append(domain.TallyObject(t.ID),
			param("type", domain.TypeTallyEditor),
			param("tally_id", hit.Int(t.ID)),
			param(domain.ParamScores, hit.Quote(t.Scores...)),
			param(domain.ParamNuclides, hit.Quote(t.Nuclides...)),
			param(domain.ParamFilterIDs, hit.Quote(domain.IDStrings(t.FilterIDs)...)),
		)
	}
	for _, f := range snap.Filters {
		objects.Append(domain.FilterObject(f.ID),
			param("type", domain.TypeDomainFilterEditor),
			param("filter_id", hit.Int(f.ID)),
			param(domain.ParamFilterType, string(f.Type)),
			param(domain.ParamBins, hit.Quote(domain.IDStrings(f.Bins)...)),
		)
	}

	controls := root.Append(domain.ControlsBlock)
	controls.Append(domain.WebServerName,
		param("type", domain.TypeWebServerControl),
		param("execute_on", hit.Quote(string(domain.FlagTimestepBegin), string(domain.FlagTimestepEnd))),
		param("port", hit.Int(port)),
	)
	return root
}

// declare registers every controllable parameter of the user objects in root.
func declare(root *hit.Node, reg *controllable.Registry) error {
	objects, ok := root.Child(domain.UserObjectsBlock())
	if !ok {
		return nil
	}
	for _, obj := range objects.Children() {
		typ, _ := obj.Param("type")
		for _, p := range obj.Params() {
			kind, ok := domain.ControllableKind(typ, p.Key)
			if !ok {
				continue
			}
			if err := reg.Declare(domain.UserObjectPath(obj.Name, p.Key), kind, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
