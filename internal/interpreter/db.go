package interpreter

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rabeh-analyse/ore/internal/runtime"
)

// Open connections and transactions live outside the heap; scripts refer to
// them through numeric handles, so collecting a handle value never tears down
// a connection behind the script's back. db_close is explicit.
var (
	dbConnections  = map[int64]*sql.DB{}
	dbTransactions = map[int64]*sql.Tx{}
)

func installDatabaseNatives(i *Interpreter) {
	for name, fn := range databaseNatives {
		native := i.heap.AllocateNativeFunction(name, fn)
		i.global.Put(runtime.StringKey(name), runtime.CellValue(native))
	}
}

var databaseNatives = map[string]runtime.NativeFn{
	"db_connect":  dbConnect,
	"db_query":    dbQuery,
	"db_exec":     dbExec,
	"db_begin":    dbBegin,
	"db_commit":   dbCommit,
	"db_rollback": dbRollback,
	"db_close":    dbClose,
}

func dbConnect(ctx runtime.CallContext, args ...runtime.Value) runtime.Value {
	if len(args) != 2 {
		return ctx.RaiseError("ArgumentError", "db_connect expects 2 arguments: driver, connectionString")
	}
	driver, ok := textOf(args[0])
	if !ok {
		return ctx.RaiseError("TypeError", "db_connect driver must be text")
	}
	connStr, ok := textOf(args[1])
	if !ok {
		return ctx.RaiseError("TypeError", "db_connect connection string must be text")
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return ctx.RaiseError("DatabaseError", "failed to open connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return ctx.RaiseError("DatabaseError", "failed to ping database: %v", err)
	}

	id := ctx.NextHandleID()
	dbConnections[id] = db
	return runtime.NumberValue(float64(id))
}

func dbQuery(ctx runtime.CallContext, args ...runtime.Value) runtime.Value {
	if len(args) < 2 {
		return ctx.RaiseError("ArgumentError", "db_query expects at least 2 arguments: connection, sql")
	}
	id, errv := connectionHandle(ctx, args[0])
	if errv.IsException() {
		return errv
	}
	query, ok := textOf(args[1])
	if !ok {
		return ctx.RaiseError("TypeError", "db_query statement must be text")
	}

	db := dbConnections[id]
	params := bindParams(args[2:])

	var rows *sql.Rows
	var err error
	if tx, inTx := dbTransactions[id]; inTx {
		rows, err = tx.Query(query, params...)
	} else {
		rows, err = db.Query(query, params...)
	}
	if err != nil {
		return ctx.RaiseError("DatabaseError", "query failed: %v", err)
	}
	defer rows.Close()

	return renderRows(ctx, rows)
}

func dbExec(ctx runtime.CallContext, args ...runtime.Value) runtime.Value {
	if len(args) < 2 {
		return ctx.RaiseError("ArgumentError", "db_exec expects at least 2 arguments: connection, sql")
	}
	id, errv := connectionHandle(ctx, args[0])
	if errv.IsException() {
		return errv
	}
	query, ok := textOf(args[1])
	if !ok {
		return ctx.RaiseError("TypeError", "db_exec statement must be text")
	}

	db := dbConnections[id]
	params := bindParams(args[2:])

	var result sql.Result
	var err error
	if tx, inTx := dbTransactions[id]; inTx {
		result, err = tx.Exec(query, params...)
	} else {
		result, err = db.Exec(query, params...)
	}
	if err != nil {
		return ctx.RaiseError("DatabaseError", "exec failed: %v", err)
	}

	affected, _ := result.RowsAffected()
	lastID, _ := result.LastInsertId()

	res := ctx.Heap().AllocateObject()
	mark := ctx.TempMark()
	ctx.Protect(runtime.CellValue(res))
	res.Put(runtime.StringKey("rowsAffected"), runtime.NumberValue(float64(affected)))
	res.Put(runtime.StringKey("lastInsertId"), runtime.NumberValue(float64(lastID)))
	ctx.ReleaseTemps(mark)
	return runtime.CellValue(res)
}

func dbBegin(ctx runtime.CallContext, args ...runtime.Value) runtime.Value {
	if len(args) != 1 {
		return ctx.RaiseError("ArgumentError", "db_begin expects 1 argument: connection")
	}
	id, errv := connectionHandle(ctx, args[0])
	if errv.IsException() {
		return errv
	}
	if _, inTx := dbTransactions[id]; inTx {
		return ctx.RaiseError("DatabaseError", "transaction already open on this connection")
	}

	tx, err := dbConnections[id].Begin()
	if err != nil {
		return ctx.RaiseError("DatabaseError", "failed to begin transaction: %v", err)
	}
	dbTransactions[id] = tx
	return args[0]
}

func dbCommit(ctx runtime.CallContext, args ...runtime.Value) runtime.Value {
	if len(args) != 1 {
		return ctx.RaiseError("ArgumentError", "db_commit expects 1 argument: connection")
	}
	id, errv := connectionHandle(ctx, args[0])
	if errv.IsException() {
		return errv
	}
	tx, inTx := dbTransactions[id]
	if !inTx {
		return ctx.RaiseError("DatabaseError", "no open transaction on this connection")
	}
	delete(dbTransactions, id)
	if err := tx.Commit(); err != nil {
		return ctx.RaiseError("DatabaseError", "failed to commit transaction: %v", err)
	}
	return args[0]
}

func dbRollback(ctx runtime.CallContext, args ...runtime.Value) runtime.Value {
	if len(args) != 1 {
		return ctx.RaiseError("ArgumentError", "db_rollback expects 1 argument: connection")
	}
	id, errv := connectionHandle(ctx, args[0])
	if errv.IsException() {
		return errv
	}
	tx, inTx := dbTransactions[id]
	if !inTx {
		return ctx.RaiseError("DatabaseError", "no open transaction on this connection")
	}
	delete(dbTransactions, id)
	if err := tx.Rollback(); err != nil {
		return ctx.RaiseError("DatabaseError", "failed to rollback transaction: %v", err)
	}
	return args[0]
}

func dbClose(ctx runtime.CallContext, args ...runtime.Value) runtime.Value {
	if len(args) != 1 {
		return ctx.RaiseError("ArgumentError", "db_close expects 1 argument: connection")
	}
	if !args[0].IsNumber() {
		return ctx.RaiseError("TypeError", "db_close connection handle must be a number")
	}
	id := int64(args[0].AsNumber())
	if tx, inTx := dbTransactions[id]; inTx {
		tx.Rollback()
		delete(dbTransactions, id)
	}
	if db, open := dbConnections[id]; open {
		db.Close()
		delete(dbConnections, id)
	}
	return runtime.NilValue()
}

func connectionHandle(ctx runtime.CallContext, v runtime.Value) (int64, runtime.Value) {
	if !v.IsNumber() {
		return 0, ctx.RaiseError("TypeError", "connection handle must be a number")
	}
	id := int64(v.AsNumber())
	if _, open := dbConnections[id]; !open {
		return 0, ctx.RaiseError("DatabaseError", "invalid connection handle")
	}
	return id, runtime.NilValue()
}

func bindParams(args []runtime.Value) []interface{} {
	params := make([]interface{}, len(args))
	for n, arg := range args {
		switch {
		case arg.IsNil():
			params[n] = nil
		case arg.IsBoolean():
			params[n] = arg.AsBoolean()
		case arg.IsNumber():
			params[n] = arg.AsNumber()
		default:
			if s, ok := textOf(arg); ok {
				params[n] = s
			} else {
				params[n] = arg.Inspect()
			}
		}
	}
	return params
}

// renderRows materialises a result set as an array of row objects. Every
// intermediate cell is protected while the set is built: in stress mode a
// collection can run on any allocation, and a half-built row is only
// reachable through the scratch roots.
func renderRows(ctx runtime.CallContext, rows *sql.Rows) runtime.Value {
	columns, err := rows.Columns()
	if err != nil {
		return ctx.RaiseError("DatabaseError", "failed to read columns: %v", err)
	}
	types, _ := rows.ColumnTypes()

	mark := ctx.TempMark()
	defer ctx.ReleaseTemps(mark)

	result := ctx.Heap().AllocateArray()
	ctx.Protect(runtime.CellValue(result))

	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for n := range values {
			pointers[n] = &values[n]
		}
		if err := rows.Scan(pointers...); err != nil {
			return ctx.RaiseError("DatabaseError", "failed to scan row: %v", err)
		}

		row := ctx.Heap().AllocateObject()
		rowMark := ctx.TempMark()
		ctx.Protect(runtime.CellValue(row))
		for n, col := range columns {
			var typeName string
			if n < len(types) {
				typeName = types[n].DatabaseTypeName()
			}
			row.Put(runtime.StringKey(col), columnValue(ctx, values[n], typeName))
		}
		result.Append(runtime.CellValue(row))
		ctx.ReleaseTemps(rowMark)
	}
	if err := rows.Err(); err != nil {
		return ctx.RaiseError("DatabaseError", "row iteration failed: %v", err)
	}
	return runtime.CellValue(result)
}

func columnValue(ctx runtime.CallContext, v interface{}, dbType string) runtime.Value {
	if v == nil {
		return runtime.NilValue()
	}
	switch x := v.(type) {
	case int64:
		return runtime.NumberValue(float64(x))
	case float64:
		return runtime.NumberValue(x)
	case []byte:
		// Drivers hand text columns back as []byte more often than not.
		return heapText(ctx, string(x))
	case string:
		return heapText(ctx, x)
	case bool:
		return runtime.BooleanValue(x)
	case time.Time:
		return heapText(ctx, x.Format(time.RFC3339))
	default:
		return heapText(ctx, fmt.Sprintf("%v", v))
	}
}

// heapText mirrors the evaluator's inline-or-cell split for text built by
// natives. Cell-backed results must be protected by the caller before
// anything else allocates.
func heapText(ctx runtime.CallContext, s string) runtime.Value {
	if len(s) <= textInlineMax {
		return runtime.TextValue(s)
	}
	cell := ctx.Heap().AllocateString(s)
	ctx.Protect(runtime.CellValue(cell))
	return runtime.CellValue(cell)
}
