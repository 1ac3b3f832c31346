/*
Package domain contains the core models shared by the coupling components.

It defines the vocabulary of the coupled run: where the external solver is
suspended, which values it exposes for steering, the in-memory mirror of
transport-engine objects and the result handed back to a depletion
integrator. This package is kept free of I/O so every adapter can depend on
it.

# Key Entities

  - ExecFlag: A suspension point in the external solver's timestep loop.
  - Controllable: A typed value addressed by a hierarchical path.
  - Snapshot: Materials, tallies and filters mirrored from the transport engine.
  - OperatorResult: The eigenvalue and reaction rates of one coupled step.
*/
package domain
