/*
Package session implements session management and persistence orchestration.

It serialises access to one editing session's snapshot across goroutines
and, with a DistributedLocker, across replicas. Local locks are reference
counted and dropped as soon as no caller holds them.
*/
package session
