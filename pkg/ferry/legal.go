package ferry

// LegalNotice provides license notices for Ferry itself and any third-party
// dependencies.
const LegalNotice = `Ferry

Copyright (c) 2023 - 2026 The Ferry authors

Licensed under the terms of the MIT License. A copy of this license can be
found online at https://opensource.org/licenses/MIT.


================================================================================
Ferry depends on the following third-party software:
================================================================================

Go and the Go standard library

https://golang.org/

Copyright (c) 2009 The Go Authors. All rights reserved.

Used under the terms of the 3-Clause BSD License (Google version).

--------------------------------------------------------------------------------

doublestar

https://github.com/bmatcuk/doublestar

Copyright (c) 2014 Bob Matcuk

Used under the terms of the MIT License.

--------------------------------------------------------------------------------

bolt

https://github.com/boltdb/bolt

Copyright (c) 2013 Ben Johnson

Used under the terms of the MIT License.

--------------------------------------------------------------------------------

humanize

https://github.com/dustin/go-humanize

Copyright (c) 2005-2008 Dustin Sallings <dustin@spy.net>

Used under the terms of the MIT License.

--------------------------------------------------------------------------------

basex

https://github.com/eknkc/basex

Copyright (c) 2017 Ekin Koc

Used under the terms of the MIT License.

--------------------------------------------------------------------------------

color

https://github.com/fatih/color

Copyright (c) 2013 Fatih Arslan

Used under the terms of the MIT License.

--------------------------------------------------------------------------------

groupcache

https://github.com/golang/groupcache

Copyright 2013 Google Inc.

Used under the terms of the Apache License, Version 2.0.

--------------------------------------------------------------------------------

uuid

https://github.com/google/uuid

Copyright (c) 2009, 2014 Google Inc. All rights reserved.

Used under the terms of the 3-Clause BSD License.

--------------------------------------------------------------------------------

godotenv

https://github.com/joho/godotenv

Copyright (c) 2013 John Barton

Used under the terms of the MIT License.

--------------------------------------------------------------------------------

go-isatty

https://github.com/mattn/go-isatty

Copyright (c) Yasuhiro MATSUMOTO <mattn.jp@gmail.com>

Used under the terms of the MIT License.

--------------------------------------------------------------------------------

errors

https://github.com/pkg/errors

Copyright (c) 2015, Dave Cheney <dave@cheney.net>
All rights reserved.

Used under the terms of the 2-Clause BSD License.

--------------------------------------------------------------------------------

Cobra

https://github.com/spf13/cobra

Copyright 2013 Steve Francia <spf@spf13.com>

Used under the terms of the Apache License, Version 2.0.

--------------------------------------------------------------------------------

pflag

https://github.com/spf13/pflag

Copyright (c) 2012 Alex Ogier. All rights reserved.
Copyright (c) 2012 The Go Authors. All rights reserved.

Used under the terms of the 3-Clause BSD License (Google version).

--------------------------------------------------------------------------------

blake3

https://github.com/zeebo/blake3

Copyright (c) 2019 Jeff Wendling

Used under the terms of the CC0 1.0 Universal License.

--------------------------------------------------------------------------------

OpenTelemetry Go (API, SDK, and Jaeger exporter)

https://go.opentelemetry.io/otel

Copyright The OpenTelemetry Authors

Used under the terms of the Apache License, Version 2.0.

--------------------------------------------------------------------------------

The Go sync subrepository

https://golang.org/x/sync

Copyright (c) 2009 The Go Authors. All rights reserved.

Used under the terms of the 3-Clause BSD License (Google version).

--------------------------------------------------------------------------------

yaml

https://gopkg.in/yaml.v3

Copyright (c) 2006-2010 Kirill Simonov
Copyright (c) 2006-2011 Kirill Simonov
Copyright (c) 2011-2019 Canonical Ltd

Used under the terms of the MIT License and the Apache License, Version 2.0.
`
