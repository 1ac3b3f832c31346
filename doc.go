/*
Package coupler drives an external multiphysics solver, through its HTTP
control server, in lockstep with an in-process neutron transport engine.

The external solver runs as a long-lived subprocess that suspends at the
beginning and at the end of every timestep. At each suspension the
coordinator may push controllable values (material compositions, tally
metadata) and then tell it to continue. One coupled step is:

  - push the current material compositions while the solver waits at TIMESTEP_BEGIN
  - let the solver advance to TIMESTEP_END, which runs transport
  - read the resulting statepoint and hand normalized reaction rates back

# Packages

  - pkg/controller: solver lifecycle, readiness and suspension polling, controllable writes.
  - pkg/statesync: mirrors materials and tallies and realigns the solver to TIMESTEP_BEGIN.
  - pkg/operator: one coupled step per call, for a depletion integrator.
  - pkg/deplete: walks a timestep schedule and persists step records.
  - pkg/adapters: process launcher, HTTP control client, emulator, stores.

# Usage

	engine, err := modelfile.Open("pincell.yaml")
	if err != nil {
		log.Fatal(err)
	}
	cfg := controller.DefaultConfig()
	cfg.Command.Base = "cardinal-opt -i openmc.i"

	err = coupler.Use(ctx, cfg, engine, func(ctx context.Context, s *coupler.Session) error {
		vec, err := s.Operator.InitialCondition(ctx)
		if err != nil {
			return err
		}
		res, err := s.Operator.Step(ctx, vec, 1e18)
		if err != nil {
			return err
		}
		fmt.Println("k =", res.K)
		return nil
	})

The solver is always stopped when Use returns.
*/
package coupler
