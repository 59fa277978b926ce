/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import "context"

type actorContextKey struct{}

// Actor is the authenticated caller supplied by the auth collaborator.
type Actor struct {
	UserId    string
	Role      Role
	RequestId string
}

// IsStaff reports whether the actor may bypass creator/KYC checks.
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleSupport
}

// WithActor attaches the authenticated actor to a context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor retrieves the actor from context; ok is false when unauthenticated.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
