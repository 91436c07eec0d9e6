/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements scrapbook persistence.
// It exposes one generic record-CRUD contract per entity (list/get/create/update/delete)
// and a SQL implementation backed either by an embedded SQLite file or by PostgreSQL.
// Hierarchical ownership is enforced with foreign keys so deletes cascade downwards,
// and books carry a unique trip_id so get-or-create is a single atomic insert.
package storage
