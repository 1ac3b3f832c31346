/*
Package ports defines the driven ports (interfaces) of the coupling core.

These interfaces decouple the controller, synchronizer and operator from the
external systems they drive, so each can be replaced by an in-memory double
in tests or by a different backend in production.

# Key Interfaces

  - ControlChannel: Request-response access to the solver's control server.
  - Launcher: Starts the external solver process.
  - TransportEngine: The in-process transport code owning materials and tallies.
  - ResultStore: Persists the records of a depletion run.
  - DistributedLocker: Prevents two coordinators from driving the same solver.
*/
package ports
